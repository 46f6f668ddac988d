package watcher

import (
	"log/slog"
	"slices"

	"github.com/Aman-CERP/remotefs/internal/async"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	RecursiveFactory RecursiveWatcherFactory
	FileFactory      FileWatcherFactory
	Levels           LevelSource
	Logger           *slog.Logger
	Scheduler        async.Scheduler
	// DefaultExcludes are added to every recursive request.
	DefaultExcludes []string
}

// Service routes watch requests: recursive ones to a Coordinator,
// non-recursive ones to a FileWatchAdapter. Both fire on the same emitters.
type Service struct {
	coordinator     *Coordinator
	adapter         *FileWatchAdapter
	changes         *event.Emitter[[]vfs.FileChange]
	errors          *event.Emitter[string]
	defaultExcludes []string
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	changes := event.NewEmitter[[]vfs.FileChange]()
	errs := event.NewEmitter[string]()

	return &Service{
		coordinator: NewCoordinator(CoordinatorOptions{
			Factory:   opts.RecursiveFactory,
			Levels:    opts.Levels,
			Logger:    opts.Logger,
			Scheduler: opts.Scheduler,
			Changes:   changes,
			Errors:    errs,
		}),
		adapter: NewFileWatchAdapter(AdapterOptions{
			Factory: opts.FileFactory,
			Levels:  opts.Levels,
			Logger:  opts.Logger,
			Changes: changes,
			Errors:  errs,
		}),
		changes:         changes,
		errors:          errs,
		defaultExcludes: slices.Clone(opts.DefaultExcludes),
	}
}

// Watch starts watching path according to opts.
func (s *Service) Watch(path string, opts vfs.WatchOptions) (event.Disposable, error) {
	if opts.Recursive {
		excludes := append(slices.Clone(s.defaultExcludes), opts.Excludes...)
		return s.coordinator.AddFolder(NewRequest(path, excludes...)), nil
	}
	return s.adapter.Watch(path)
}

// OnDidChangeFile registers a listener for change batches.
func (s *Service) OnDidChangeFile(fn func([]vfs.FileChange)) event.Disposable {
	return s.changes.On(fn)
}

// OnDidErrorOccur registers a listener for watcher errors.
func (s *Service) OnDidErrorOccur(fn func(string)) event.Disposable {
	return s.errors.On(fn)
}

// Coordinator returns the recursive side.
func (s *Service) Coordinator() *Coordinator { return s.coordinator }

// Adapter returns the non-recursive side.
func (s *Service) Adapter() *FileWatchAdapter { return s.adapter }

// Dispose stops every watcher and drops every listener.
func (s *Service) Dispose() {
	s.coordinator.Dispose()
	s.adapter.Dispose()
	s.changes.Dispose()
	s.errors.Dispose()
}
