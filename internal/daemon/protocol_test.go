package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse("req-1", PingResult{Pong: true})

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"pong":true}`, string(resp.Result))
}

func TestNewSuccessResponse_UnencodableResult(t *testing.T) {
	resp := NewSuccessResponse("req-1", func() {})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestNewFileSystemErrorResponse_RoundTrip(t *testing.T) {
	// Given: a taxonomy error
	resp := NewFileSystemErrorResponse("req-2", fserrors.FileNotFound("/a.txt", nil))

	// When: it crosses the wire
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Then: the client rebuilds the same code
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeFileSystem, decoded.Error.Code)
	err = decoded.Error.Err()
	assert.ErrorIs(t, err, fserrors.ErrFileNotFound)
}

func TestError_Err_ProtocolError(t *testing.T) {
	e := &Error{Code: ErrCodeMethodNotFound, Message: "method not found: frob"}
	err := e.Err()
	assert.Equal(t, fserrors.ErrCodeProtocol, fserrors.GetCode(err))
	assert.Contains(t, err.Error(), "frob")
}

func TestNotification_Shape(t *testing.T) {
	data, err := json.Marshal(NewNotification(json.RawMessage(`"end"`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"event","params":"end"}`, string(data))
}

func TestDecodeArgs(t *testing.T) {
	params, err := encodeArgs([]any{vfs.File("/a"), 7, vfs.WriteOptions{Create: true}})
	require.NoError(t, err)

	var (
		res  vfs.URI
		n    int
		opts vfs.WriteOptions
	)
	require.NoError(t, decodeArgs(params, &res, &n, &opts))
	assert.Equal(t, vfs.File("/a"), res)
	assert.Equal(t, 7, n)
	assert.True(t, opts.Create)

	// Missing trailing arguments keep their defaults
	opts2 := vfs.WholeFile
	require.NoError(t, decodeArgs(json.RawMessage(`[{"scheme":"file","path":"/b"}]`), &res, &opts2))
	assert.Equal(t, int64(-1), opts2.Length)

	assert.Equal(t, fserrors.ErrCodeInvalidInput, fserrors.GetCode(decodeArgs(json.RawMessage(`{}`), &res)))
	assert.Equal(t, fserrors.ErrCodeInvalidInput, fserrors.GetCode(decodeArgs(json.RawMessage(`[1,2]`), &n)))
	assert.Equal(t, fserrors.ErrCodeInvalidInput, fserrors.GetCode(decodeArgs(json.RawMessage(`["x"]`), &n)))
}

func TestEncodeArgs_NilIsEmptyArray(t *testing.T) {
	params, err := encodeArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(params))
}

func TestListenParams_Validate(t *testing.T) {
	require.NoError(t, ListenParams{Event: "filechange"}.Validate())
	assert.Equal(t, fserrors.ErrCodeInvalidInput, fserrors.GetCode(ListenParams{}.Validate()))
}
