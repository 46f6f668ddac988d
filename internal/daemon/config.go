// Package daemon serves a local directory to remote file system providers.
// The daemon owns a DiskProvider and answers one JSON-RPC request per Unix
// socket connection; listen requests keep their connection open as a stream
// of file contents or change batches.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.remotefs/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.remotefs/daemon.pid
	PIDPath string

	// LockPath guards against two daemons serving the same socket.
	// Default: SocketPath + ".lock"
	LockPath string

	// Timeout is the maximum duration of a non-streaming request.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration

	// Root is the directory served. Empty serves the whole file system.
	Root string
}

// DefaultDir returns ~/.remotefs.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".remotefs")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	dir := DefaultDir()

	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// lockPath returns LockPath or its default.
func (c Config) lockPath() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return c.SocketPath + ".lock"
}

// EnsureDir creates the directories for the socket, PID and lock files.
func (c Config) EnsureDir() error {
	seen := make(map[string]bool)
	for _, p := range []string{c.SocketPath, c.PIDPath, c.lockPath()} {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
