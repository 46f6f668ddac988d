package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// NativeFileWatcher implements FileWatcher for one path. A file is watched
// through its parent directory so that replacement by rename is seen; a
// directory reports changes to itself and its direct children.
type NativeFileWatcher struct {
	path     string
	onChange func([]DiskChange)
	onLog    func(LogMessage)
	verbose  atomic.Bool

	fsw       *fsnotify.Watcher
	poller    *PollingWatcher
	debouncer *Debouncer
	isDir     bool
	cancel    context.CancelFunc
	stopCh    chan struct{}
	once      sync.Once
}

// NewNativeFileFactory returns a factory creating native single-path
// watchers with opts.
func NewNativeFileFactory(opts Options) FileWatcherFactory {
	return func(path string, onChange func([]DiskChange), onLog func(LogMessage), verbose bool) (FileWatcher, error) {
		w, err := NewNativeFileWatcher(path, onChange, onLog, verbose, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// NewNativeFileWatcher starts watching path.
func NewNativeFileWatcher(path string, onChange func([]DiskChange), onLog func(LogMessage), verbose bool, opts Options) (*NativeFileWatcher, error) {
	opts = opts.WithDefaults()
	if onLog == nil {
		onLog = func(LogMessage) {}
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &NativeFileWatcher{
		path:     path,
		onChange: onChange,
		onLog:    onLog,
		isDir:    info.IsDir(),
		cancel:   cancel,
		stopCh:   make(chan struct{}),
	}
	w.verbose.Store(verbose)
	w.debouncer = NewDebouncer(opts.DebounceWindow, w.deliver)

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			target := path
			if !w.isDir {
				target = filepath.Dir(path)
			}
			if err := fsw.Add(target); err != nil {
				_ = fsw.Close()
				cancel()
				return nil, err
			}
			w.fsw = fsw
			go w.loop()
			return w, nil
		}
		w.log(LogWarn, fmt.Sprintf("fsnotify unavailable, falling back to polling: %v", err))
	}

	w.poller = NewPollingWatcher(path, opts.PollInterval, true, nil, w.debouncer.Add)
	if err := w.poller.Start(ctx); err != nil {
		cancel()
		return nil, err
	}
	return w, nil
}

// SetVerboseLogging toggles per-event trace messages.
func (w *NativeFileWatcher) SetVerboseLogging(verbose bool) {
	w.verbose.Store(verbose)
}

// Verbose reports whether verbose logging is on.
func (w *NativeFileWatcher) Verbose() bool {
	return w.verbose.Load()
}

// Dispose stops watching. Safe to call multiple times.
func (w *NativeFileWatcher) Dispose() {
	w.once.Do(func() {
		close(w.stopCh)
		w.cancel()
		w.debouncer.Stop()
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		if w.poller != nil {
			w.poller.Stop()
		}
	})
}

func (w *NativeFileWatcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log(LogError, fmt.Sprintf("watcher error on %s: %v", w.path, err))
		}
	}
}

func (w *NativeFileWatcher) handleEvent(ev fsnotify.Event) {
	if !w.relevant(ev.Name) {
		return
	}
	if w.verbose.Load() {
		w.log(LogTrace, fmt.Sprintf("[raw] %s %s", ev.Op, ev.Name))
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.debouncer.Add(DiskChange{Path: ev.Name, Type: vfs.ChangeAdded})
	case ev.Op&fsnotify.Write != 0:
		w.debouncer.Add(DiskChange{Path: ev.Name, Type: vfs.ChangeUpdated})
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.debouncer.Add(DiskChange{Path: ev.Name, Type: vfs.ChangeDeleted})
	}
}

func (w *NativeFileWatcher) relevant(name string) bool {
	if name == w.path {
		return true
	}
	return w.isDir && filepath.Dir(name) == w.path
}

func (w *NativeFileWatcher) deliver(batch []DiskChange) {
	select {
	case <-w.stopCh:
		return
	default:
	}
	if w.onChange != nil {
		w.onChange(batch)
	}
}

func (w *NativeFileWatcher) log(t LogType, msg string) {
	w.onLog(LogMessage{Type: t, Message: msg})
}
