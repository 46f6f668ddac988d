package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
)

// JSON-RPC 2.0 method names served by the daemon itself. File system methods
// are named by the provider package.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodListen = "listen"
)

// NotificationMethod is the method of every message on a listen stream.
const NotificationMethod = "event"

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrCodeFileSystem marks an error whose data member is a wire error of the
// file system taxonomy.
const ErrCodeFileSystem = -32001

// ErrMethodNotFound is returned by a Handler for a method it does not serve.
var ErrMethodNotFound = errors.New("method not found")

// Request represents a JSON-RPC 2.0 request. Params of file system methods
// are a positional array.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Notification is one payload of a listen stream.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    *fserrors.WireError `json:"data,omitempty"`
}

// Err converts e back to a Go error. File system errors keep their code;
// protocol errors become ERR_302_PROTOCOL.
func (e *Error) Err() error {
	if e.Data != nil {
		return fserrors.FromWire(*e.Data)
	}
	return fserrors.New(fserrors.ErrCodeProtocol, e.Message, nil)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{
		JSONRPC: "2.0",
		Result:  data,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// NewFileSystemErrorResponse creates an error response carrying err as a
// wire error.
func NewFileSystemErrorResponse(id string, err error) Response {
	wire := fserrors.ToWire(err)
	resp := NewErrorResponse(id, ErrCodeFileSystem, wire.Message)
	resp.Error.Data = &wire
	return resp
}

// NewNotification wraps a stream payload.
func NewNotification(payload json.RawMessage) Notification {
	return Notification{
		JSONRPC: "2.0",
		Method:  NotificationMethod,
		Params:  payload,
	}
}

// ListenParams are the parameters for the listen method.
type ListenParams struct {
	// Event is the stream to open, e.g. "readFileStream" or "filechange".
	Event string `json:"event"`

	// Args are the stream's positional arguments.
	Args json.RawMessage `json:"args,omitempty"`
}

// Validate checks that required fields are present.
func (p ListenParams) Validate() error {
	if p.Event == "" {
		return fserrors.InvalidInput("event is required")
	}
	return nil
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running   bool   `json:"running"`
	PID       int    `json:"pid"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version,omitempty"`
	Root      string `json:"root"`
	Sessions  int    `json:"sessions"`
	Watches   int    `json:"watches"`
	OpenFiles int    `json:"open_files"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}

// encodeArgs builds the positional params array of a request.
func encodeArgs(args []any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(args)
}

// decodeArgs unpacks a positional params array into targets. Missing
// trailing arguments leave their targets untouched.
func decodeArgs(params json.RawMessage, targets ...any) error {
	if len(params) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(params, &items); err != nil {
		return fserrors.InvalidInput("params must be an array")
	}
	if len(items) > len(targets) {
		return fserrors.InvalidInput("too many params")
	}
	for i, item := range items {
		if err := json.Unmarshal(item, targets[i]); err != nil {
			return fserrors.InvalidInput(fmt.Sprintf("invalid param %d: %v", i, err))
		}
	}
	return nil
}
