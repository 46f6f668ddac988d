package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/remotefs/internal/daemon"
	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/watcher"
)

var socketSeq atomic.Int64

// isolate makes configuration come from defaults only. Returns the XDG
// config home.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, name := range []string{
		"REMOTEFS_SOCKET",
		"REMOTEFS_LOG_LEVEL",
		"REMOTEFS_ROOT",
		"REMOTEFS_WATCH_DEBOUNCE",
		"REMOTEFS_MAX_OPEN_FILES",
	} {
		t.Setenv(name, "")
	}
	return xdg
}

// uniquePaths returns socket and PID paths short enough for a Unix socket.
func uniquePaths(t *testing.T) (string, string) {
	t.Helper()
	suffix := fmt.Sprintf("%d-%d", os.Getpid(), socketSeq.Add(1))
	socket := filepath.Join("/tmp", fmt.Sprintf("remotefs-cli-%s.sock", suffix))
	pid := filepath.Join("/tmp", fmt.Sprintf("remotefs-cli-%s.pid", suffix))
	t.Cleanup(func() {
		os.Remove(socket)
		os.Remove(socket + ".lock")
		os.Remove(pid)
	})
	return socket, pid
}

// startDaemon serves a fresh directory in-process until the test ends.
// Returns the served root and the socket path.
func startDaemon(t *testing.T) (string, string) {
	t.Helper()
	isolate(t)
	socket, pid := uniquePaths(t)
	cfg := daemon.Config{
		SocketPath:          socket,
		PIDPath:             pid,
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: time.Second,
		Root:                t.TempDir(),
	}

	d, err := daemon.NewDaemon(cfg,
		daemon.WithLogger(logging.Discard()),
		daemon.WithDiskOptions(provider.DiskOptions{
			StreamChunkSize: 4,
			Watcher:         watcher.Options{DebounceWindow: 20 * time.Millisecond},
		}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	client := daemon.NewClient(cfg)
	require.Eventually(t, client.IsRunning, 5*time.Second, 10*time.Millisecond)
	return cfg.Root, socket
}

// run executes the CLI against socket and returns its combined output.
func run(t *testing.T, socket, stdin string, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return runContext(ctx, socket, stdin, &bytes.Buffer{}, args...)
}

// outputBuffer is written by the command and read by the test.
type outputBuffer interface {
	io.Writer
	String() string
}

func runContext(ctx context.Context, socket, stdin string, out outputBuffer, args ...string) (string, error) {
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	if socket != "" {
		args = append(args, "--socket", socket)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
