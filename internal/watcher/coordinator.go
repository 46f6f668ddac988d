package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/remotefs/internal/async"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Factory creates the recursive watcher. Required.
	Factory RecursiveWatcherFactory
	// Levels drives watcher verbosity. Defaults to info, which is not verbose.
	Levels LevelSource
	// Logger receives watcher log messages. Defaults to slog.Default().
	Logger *slog.Logger
	// Scheduler runs reconciliation. Defaults to async.GoScheduler.
	Scheduler async.Scheduler
	// Changes and Errors are the emitters events are fired on. Fresh
	// emitters are created when nil.
	Changes *event.Emitter[[]vfs.FileChange]
	Errors  *event.Emitter[string]
}

// Coordinator owns the single recursive watcher and keeps its folder set in
// line with a Registry.
type Coordinator struct {
	factory  RecursiveWatcherFactory
	levels   LevelSource
	logger   *slog.Logger
	changes  *event.Emitter[[]vfs.FileChange]
	errors   *event.Emitter[string]
	registry *Registry

	reconciler *async.Coalescer
	// serialises reconcile runs; GoScheduler may start a run while the
	// previous one is still inside the factory.
	runMu sync.Mutex

	mu            sync.Mutex
	watcher       RecursiveWatcher
	levelListener event.Disposable
	disposed      bool
}

// NewCoordinator creates a Coordinator with an empty registry.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Levels == nil {
		opts.Levels = logging.NewLevelSource(slog.LevelInfo)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Changes == nil {
		opts.Changes = event.NewEmitter[[]vfs.FileChange]()
	}
	if opts.Errors == nil {
		opts.Errors = event.NewEmitter[string]()
	}

	c := &Coordinator{
		factory:  opts.Factory,
		levels:   opts.Levels,
		logger:   opts.Logger.With(slog.String("component", "recursive-watcher")),
		changes:  opts.Changes,
		errors:   opts.Errors,
		registry: NewRegistry(),
	}
	c.reconciler = async.NewCoalescer(opts.Scheduler, c.reconcile)
	return c
}

// AddFolder registers req and schedules a reconciliation. Disposing the
// returned handle retracts exactly this registration and schedules another.
func (c *Coordinator) AddFolder(req Request) event.Disposable {
	id := c.registry.Add(req)
	c.reconciler.Trigger()

	return event.OnDispose(func() {
		if c.registry.Remove(id) {
			c.reconciler.Trigger()
		}
	})
}

// Registry exposes the request registry for inspection.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// OnDidChangeFile registers a listener for change batches.
func (c *Coordinator) OnDidChangeFile(fn func([]vfs.FileChange)) event.Disposable {
	return c.changes.On(fn)
}

// OnDidErrorOccur registers a listener for watcher errors.
func (c *Coordinator) OnDidErrorOccur(fn func(string)) event.Disposable {
	return c.errors.On(fn)
}

// HasWatcher reports whether the recursive watcher has been created.
func (c *Coordinator) HasWatcher() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watcher != nil
}

func (c *Coordinator) reconcile() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	w := c.watcher
	c.mu.Unlock()

	folders := c.registry.Folders()

	if w != nil {
		c.logger.Log(context.Background(), logging.LevelTrace, "updating watched folders",
			slog.Int("folders", len(folders)))
		if err := w.SetFolders(folders); err != nil {
			c.reportError(fmt.Sprintf("failed to update watched folders: %v", err))
		}
		return
	}

	// Empty registry with no watcher: nothing to start. An existing watcher
	// is never torn down here; it lives until Dispose.
	if len(folders) == 0 {
		return
	}

	if c.factory == nil {
		c.reportError("recursive watching is not supported")
		return
	}
	verbose := logging.IsVerbose(c.levels.Level())
	created, err := c.factory(folders, c.onChange, c.onLog, verbose)
	if err != nil {
		c.reportError(fmt.Sprintf("failed to start recursive watcher: %v", err))
		return
	}

	listener := c.levels.OnDidChange(func(level slog.Level) {
		created.SetVerboseLogging(logging.IsVerbose(level))
	})

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		listener.Dispose()
		created.Dispose()
		return
	}
	c.watcher = created
	c.levelListener = listener
	c.mu.Unlock()

	c.logger.Debug("recursive watcher started", slog.Int("folders", len(folders)))
}

func (c *Coordinator) onChange(changes []DiskChange) {
	if len(changes) == 0 {
		return
	}
	c.changes.Fire(toFileChanges(changes))
}

func (c *Coordinator) onLog(msg LogMessage) {
	routeLog(c.logger, c.errors, msg)
}

func (c *Coordinator) reportError(message string) {
	c.logger.Error(message)
	c.errors.Fire(message)
}

// Dispose cancels pending reconciliation and releases the watcher. Safe to
// call more than once.
func (c *Coordinator) Dispose() {
	c.reconciler.Dispose()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	w := c.watcher
	listener := c.levelListener
	c.watcher = nil
	c.levelListener = nil
	c.mu.Unlock()

	if listener != nil {
		listener.Dispose()
	}
	if w != nil {
		w.Dispose()
	}
}

// routeLog writes msg at its severity; errors are also fired on errs.
func routeLog(logger *slog.Logger, errs *event.Emitter[string], msg LogMessage) {
	logger.Log(context.Background(), msg.Type.Level(), msg.Message)
	if msg.Type == LogError {
		errs.Fire(msg.Message)
	}
}
