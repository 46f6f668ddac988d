package watcher

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// AdapterOptions configures a FileWatchAdapter.
type AdapterOptions struct {
	Factory FileWatcherFactory
	Levels  LevelSource
	Logger  *slog.Logger
	Changes *event.Emitter[[]vfs.FileChange]
	Errors  *event.Emitter[string]
}

// FileWatchAdapter creates one FileWatcher per Watch call.
type FileWatchAdapter struct {
	factory FileWatcherFactory
	levels  LevelSource
	logger  *slog.Logger
	changes *event.Emitter[[]vfs.FileChange]
	errors  *event.Emitter[string]

	mu       sync.Mutex
	live     map[uint64]event.Disposable
	nextID   uint64
	disposed bool
}

// NewFileWatchAdapter creates an adapter.
func NewFileWatchAdapter(opts AdapterOptions) *FileWatchAdapter {
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
	return &FileWatchAdapter{
		factory: opts.Factory,
		levels:  opts.Levels,
		logger:  opts.Logger.With(slog.String("component", "file-watcher")),
		changes: opts.Changes,
		errors:  opts.Errors,
		live:    make(map[uint64]event.Disposable),
	}
}

// Watch starts watching path. The returned handle stops the watcher and its
// level subscription together, once.
func (a *FileWatchAdapter) Watch(path string) (event.Disposable, error) {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil, fmt.Errorf("watch %s: adapter disposed", path)
	}
	a.mu.Unlock()
	if a.factory == nil {
		return nil, fmt.Errorf("watch %s: non-recursive watching is not supported", path)
	}

	logger := a.logger.With(slog.String("path", path))
	onChange := func(changes []DiskChange) {
		if len(changes) > 0 {
			a.changes.Fire(toFileChanges(changes))
		}
	}
	onLog := func(msg LogMessage) {
		routeLog(logger, a.errors, msg)
	}

	w, err := a.factory(path, onChange, onLog, logging.IsVerbose(a.levels.Level()))
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	listener := a.levels.OnDidChange(func(level slog.Level) {
		w.SetVerboseLogging(logging.IsVerbose(level))
	})

	a.mu.Lock()
	a.nextID++
	id := a.nextID
	handle := event.OnDispose(func() {
		a.mu.Lock()
		delete(a.live, id)
		a.mu.Unlock()

		listener.Dispose()
		w.Dispose()
	})
	if a.disposed {
		a.mu.Unlock()
		handle.Dispose()
		return nil, fmt.Errorf("watch %s: adapter disposed", path)
	}
	a.live[id] = handle
	a.mu.Unlock()

	logger.Debug("file watcher started")
	return handle, nil
}

// Len returns the number of live watchers.
func (a *FileWatchAdapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Dispose stops every live watcher.
func (a *FileWatchAdapter) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	handles := make([]event.Disposable, 0, len(a.live))
	for _, h := range a.live {
		handles = append(handles, h)
	}
	a.mu.Unlock()

	for _, h := range handles {
		h.Dispose()
	}
}
