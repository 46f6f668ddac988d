package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/logging"
)

// roundTrip sends one raw request and decodes one response.
func roundTrip(t *testing.T, socketPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, json.NewEncoder(conn).Encode(req))
	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_ListenAndServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	srv, err := NewServer(cfg.SocketPath, WithServerLogger(logging.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.SocketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	// Socket is removed on exit
	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err))
}

func TestServer_PingAndStatus(t *testing.T) {
	cfg := testConfig(t)
	startServer(t, cfg, &stubHandler{})

	resp := roundTrip(t, cfg.SocketPath, Request{JSONRPC: "2.0", Method: MethodPing, ID: "1"})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"pong":true}`, string(resp.Result))

	resp = roundTrip(t, cfg.SocketPath, Request{JSONRPC: "2.0", Method: MethodStatus, ID: "2"})
	require.Nil(t, resp.Error)
	var status StatusResult
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "/stub", status.Root)
}

func TestServer_Errors(t *testing.T) {
	cfg := testConfig(t)
	startServer(t, cfg, &stubHandler{
		handle: func(ctx context.Context, method string, params json.RawMessage) (any, error) {
			if method == "stat" {
				return nil, fserrors.FileNotFound("/x", nil)
			}
			return nil, ErrMethodNotFound
		},
	})

	// File system errors carry their wire form
	resp := roundTrip(t, cfg.SocketPath, Request{JSONRPC: "2.0", Method: "stat", ID: "1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFileSystem, resp.Error.Code)
	require.NotNil(t, resp.Error.Data)
	assert.Equal(t, fserrors.ErrCodeFileNotFound, resp.Error.Data.Code)

	// Unknown methods are protocol errors
	resp = roundTrip(t, cfg.SocketPath, Request{JSONRPC: "2.0", Method: "frob", ID: "2"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestServer_InvalidJSON(t *testing.T) {
	cfg := testConfig(t)
	startServer(t, cfg, &stubHandler{})

	conn, err := net.Dial("unix", cfg.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestServer_ListenStreamsUntilClientHangsUp(t *testing.T) {
	// Given: a handler that emits one payload and then waits
	cfg := testConfig(t)
	var (
		mu     sync.Mutex
		ended  bool
		gotArg string
	)
	startServer(t, cfg, &stubHandler{
		listen: func(ctx context.Context, name string, args json.RawMessage, emit Emit) error {
			var a []string
			_ = json.Unmarshal(args, &a)
			mu.Lock()
			gotArg = a[0]
			mu.Unlock()
			if err := emit(json.RawMessage(`"hello"`)); err != nil {
				return err
			}
			<-ctx.Done()
			mu.Lock()
			ended = true
			mu.Unlock()
			return nil
		},
	})

	// When: a client listens
	client := NewClient(cfg)
	payloads := make(chan string, 4)
	sub := client.Listen("greetings", []any{"session-1"}, func(raw json.RawMessage) {
		payloads <- string(raw)
	})

	// Then: the payload arrives, and disposing ends the handler
	select {
	case p := <-payloads:
		assert.Equal(t, `"hello"`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("no payload")
	}
	mu.Lock()
	assert.Equal(t, "session-1", gotArg)
	mu.Unlock()

	sub.Dispose()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ended
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, payloads, "nothing is delivered after dispose")
}

func TestServer_ListenRejected(t *testing.T) {
	cfg := testConfig(t)
	startServer(t, cfg, &stubHandler{
		listen: func(ctx context.Context, name string, args json.RawMessage, emit Emit) error {
			if name == "readFileStream" {
				return fserrors.FileNotFound("/gone", nil)
			}
			return ErrMethodNotFound
		},
	})

	client := NewClient(cfg)
	payloads := make(chan json.RawMessage, 2)
	sub := client.Listen("readFileStream", nil, func(raw json.RawMessage) { payloads <- raw })
	defer sub.Dispose()

	select {
	case raw := <-payloads:
		err := fserrors.Coerce(raw)
		assert.Equal(t, fserrors.ErrCodeFileNotFound, err.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("no error payload")
	}
}

func TestServer_ShutdownEndsStreams(t *testing.T) {
	cfg := testConfig(t)
	srv, err := NewServer(cfg.SocketPath, WithServerLogger(logging.Discard()), WithShutdownGracePeriod(time.Second))
	require.NoError(t, err)
	srv.SetHandler(&stubHandler{
		listen: func(ctx context.Context, name string, args json.RawMessage, emit Emit) error {
			<-ctx.Done()
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)

	payloads := make(chan string, 2)
	sub := client.Listen("filechange", []any{"s"}, func(raw json.RawMessage) {
		payloads <- string(raw)
	})
	defer sub.Dispose()
	time.Sleep(50 * time.Millisecond)

	// When: the server stops
	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	// Then: the stream reports the lost connection as a string payload
	select {
	case p := <-payloads:
		var msg string
		require.NoError(t, json.Unmarshal([]byte(p), &msg))
		assert.Contains(t, msg, "filechange stream lost")
	case <-time.After(2 * time.Second):
		t.Fatal("stream loss was not reported")
	}
}
