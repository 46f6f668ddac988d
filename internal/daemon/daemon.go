package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/watcher"
	"github.com/Aman-CERP/remotefs/pkg/version"
)

// Daemon serves a DiskProvider over a Unix socket.
type Daemon struct {
	cfg     Config
	logger  *slog.Logger
	disk    provider.DiskOptions
	pidFile *PIDFile
	lock    *InstanceLock
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the daemon's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// WithDiskOptions configures the served DiskProvider. Root is taken from
// Config.Root when unset.
func WithDiskOptions(opts provider.DiskOptions) Option {
	return func(d *Daemon) { d.disk = opts }
}

// WithLevels lets watcher verbosity follow a runtime log level.
func WithLevels(levels watcher.LevelSource) Option {
	return func(d *Daemon) { d.disk.Watch.Levels = levels }
}

// NewDaemon creates a daemon. It does not touch the file system until Start.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  slog.Default(),
		pidFile: NewPIDFile(cfg.PIDPath),
		lock:    NewInstanceLock(cfg.lockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.disk.Root == "" {
		d.disk.Root = cfg.Root
	}
	if d.disk.Logger == nil {
		d.disk.Logger = d.logger
	}
	return d, nil
}

// Start serves until ctx is done. It refuses to start when another daemon
// holds the instance lock.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("%w: lock %s is held", ErrAlreadyRunning, d.lock.Path())
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("Failed to release instance lock", slog.String("error", err.Error()))
		}
	}()

	if err := d.pidFile.Claim(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			d.logger.Warn("Failed to remove PID file", slog.String("error", err.Error()))
		}
	}()

	disk, err := provider.NewDiskProvider(d.disk)
	if err != nil {
		return fmt.Errorf("failed to open root: %w", err)
	}
	defer disk.Dispose()

	handler := NewFileSystemHandler(disk, d.logger)
	defer handler.Close()

	srv, err := NewServer(d.cfg.SocketPath,
		WithRequestTimeout(d.cfg.Timeout),
		WithShutdownGracePeriod(d.cfg.ShutdownGracePeriod),
		WithServerLogger(d.logger))
	if err != nil {
		return err
	}
	srv.SetHandler(&versionedHandler{FileSystemHandler: handler})

	d.logger.Info("Daemon starting",
		slog.String("version", version.Short()),
		slog.String("root", disk.Root()),
		slog.String("socket", d.cfg.SocketPath))

	err = srv.ListenAndServe(ctx)
	d.logger.Info("Daemon stopped")
	return err
}

// versionedHandler adds the build version to the status.
type versionedHandler struct {
	*FileSystemHandler
}

func (h *versionedHandler) Status(status *StatusResult) {
	h.FileSystemHandler.Status(status)
	status.Version = version.Short()
}
