package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/watcher"
)

var socketSeq atomic.Int64

// testConfig creates a configuration with unique short paths under /tmp.
func testConfig(t *testing.T) Config {
	t.Helper()
	suffix := fmt.Sprintf("%d-%d", os.Getpid(), socketSeq.Add(1))
	socketPath := filepath.Join("/tmp", fmt.Sprintf("remotefs-test-%s.sock", suffix))
	pidPath := filepath.Join("/tmp", fmt.Sprintf("remotefs-test-%s.pid", suffix))

	t.Cleanup(func() {
		os.Remove(socketPath)
		os.Remove(socketPath + ".lock")
		os.Remove(pidPath)
	})

	return Config{
		SocketPath:          socketPath,
		PIDPath:             pidPath,
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
}

// startServer serves h until the test ends.
func startServer(t *testing.T, cfg Config, h RequestHandler) {
	t.Helper()
	srv, err := NewServer(cfg.SocketPath, WithServerLogger(logging.Discard()), WithShutdownGracePeriod(time.Second))
	require.NoError(t, err)
	srv.SetHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
}

// startFileSystem serves a fresh temp directory and returns it.
func startFileSystem(t *testing.T, cfg Config) (string, *FileSystemHandler) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	disk, err := provider.NewDiskProvider(provider.DiskOptions{
		Root:            root,
		Logger:          logging.Discard(),
		StreamChunkSize: 4,
		Watcher:         watcher.Options{DebounceWindow: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	h := NewFileSystemHandler(disk, logging.Discard())
	t.Cleanup(func() {
		h.Close()
		disk.Dispose()
	})
	startServer(t, cfg, h)
	return root, h
}

// stubHandler answers from functions set by the test.
type stubHandler struct {
	handle func(ctx context.Context, method string, params json.RawMessage) (any, error)
	listen func(ctx context.Context, event string, args json.RawMessage, emit Emit) error
}

func (s *stubHandler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if s.handle == nil {
		return nil, ErrMethodNotFound
	}
	return s.handle(ctx, method, params)
}

func (s *stubHandler) Listen(ctx context.Context, event string, args json.RawMessage, emit Emit) error {
	if s.listen == nil {
		return ErrMethodNotFound
	}
	return s.listen(ctx, event, args, emit)
}

func (s *stubHandler) Status(status *StatusResult) {
	status.Root = "/stub"
}
