package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/moby/patternmatcher"

	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// NativeRecursiveWatcher implements RecursiveWatcher with fsnotify, falling
// back to polling when fsnotify cannot be created.
type NativeRecursiveWatcher struct {
	opts     Options
	onChange func([]DiskChange)
	onLog    func(LogMessage)
	verbose  atomic.Bool

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	roots     map[string]*watchRoot
	dirRefs   map[string]int
	debouncer *Debouncer
	batches   chan []DiskChange
	stopCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   bool

	droppedBatches atomic.Uint64
}

type watchRoot struct {
	req      Request
	excludes *patternmatcher.PatternMatcher
	dirs     map[string]struct{}
	poller   *PollingWatcher
}

// NewNativeRecursiveFactory returns a factory creating native recursive
// watchers with opts.
func NewNativeRecursiveFactory(opts Options) RecursiveWatcherFactory {
	return func(folders []Request, onChange func([]DiskChange), onLog func(LogMessage), verbose bool) (RecursiveWatcher, error) {
		w, err := NewNativeRecursiveWatcher(folders, onChange, onLog, verbose, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// NewNativeRecursiveWatcher starts watching folders. Folders that cannot be
// watched are reported through onLog as errors; a later SetFolders retries
// them.
func NewNativeRecursiveWatcher(folders []Request, onChange func([]DiskChange), onLog func(LogMessage), verbose bool, opts Options) (*NativeRecursiveWatcher, error) {
	opts = opts.WithDefaults()
	if onLog == nil {
		onLog = func(LogMessage) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &NativeRecursiveWatcher{
		opts:     opts,
		onChange: onChange,
		onLog:    onLog,
		roots:    make(map[string]*watchRoot),
		dirRefs:  make(map[string]int),
		batches:  make(chan []DiskChange, opts.EventBufferSize),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	w.verbose.Store(verbose)
	w.debouncer = NewDebouncer(opts.DebounceWindow, w.enqueue)

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsw = fsw
		} else {
			w.log(LogWarn, fmt.Sprintf("fsnotify unavailable, falling back to polling: %v", err))
		}
	}

	go w.dispatch()
	if w.fsw != nil {
		go w.loop()
	}

	if err := w.SetFolders(folders); err != nil {
		w.log(LogError, err.Error())
	}
	return w, nil
}

// SetFolders replaces the watched roots, diffing by Request.Key.
func (w *NativeRecursiveWatcher) SetFolders(folders []Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return errors.New("watcher disposed")
	}

	current := make([]Request, 0, len(w.roots))
	for _, r := range w.roots {
		current = append(current, r.req)
	}
	added, removed := Diff(current, Dedupe(folders))

	for _, req := range removed {
		w.removeRootLocked(req.Key())
		w.traceLocked("stopped watching %s", req.Path)
	}

	var errs []error
	for _, req := range added {
		if err := w.addRootLocked(req); err != nil {
			w.logLocked(LogWarn, fmt.Sprintf("failed to watch %s: %v", req.Path, err))
			errs = append(errs, fmt.Errorf("watch %s: %w", req.Path, err))
			continue
		}
		w.traceLocked("started watching %s (%d excludes)", req.Path, len(req.Excludes))
	}
	return errors.Join(errs...)
}

// SetVerboseLogging toggles per-event trace messages.
func (w *NativeRecursiveWatcher) SetVerboseLogging(verbose bool) {
	w.verbose.Store(verbose)
}

// Verbose reports whether verbose logging is on.
func (w *NativeRecursiveWatcher) Verbose() bool {
	return w.verbose.Load()
}

// Mode returns "fsnotify" or "polling".
func (w *NativeRecursiveWatcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// DroppedBatches returns the number of batches dropped because the delivery
// queue was full.
func (w *NativeRecursiveWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Folders returns the roots currently watched.
func (w *NativeRecursiveWatcher) Folders() []Request {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Request, 0, len(w.roots))
	for _, r := range w.roots {
		out = append(out, r.req.Clone())
	}
	return out
}

// Dispose stops watching. Safe to call multiple times.
func (w *NativeRecursiveWatcher) Dispose() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	for key := range w.roots {
		w.removeRootLocked(key)
	}
	w.mu.Unlock()

	w.cancel()
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
}

func (w *NativeRecursiveWatcher) addRootLocked(req Request) error {
	info, err := os.Stat(req.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", req.Path)
	}

	root := &watchRoot{req: req.Clone(), dirs: make(map[string]struct{})}
	if len(req.Excludes) > 0 {
		pm, err := patternmatcher.New(req.Excludes)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern: %w", err)
		}
		root.excludes = pm
	}

	if w.fsw == nil {
		root.poller = NewPollingWatcher(req.Path, w.opts.PollInterval, false, root.excludes, w.debouncer.Add)
		if err := root.poller.Start(w.ctx); err != nil {
			return err
		}
	} else if err := w.addTreeLocked(root, req.Path); err != nil {
		w.releaseDirsLocked(root)
		return err
	}

	w.roots[req.Key()] = root
	return nil
}

// addTreeLocked registers dir and every non-excluded directory below it.
func (w *NativeRecursiveWatcher) addTreeLocked(root *watchRoot, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip directories we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := relativeTo(root.req.Path, path); ok && isExcluded(root.excludes, rel) {
			return filepath.SkipDir
		}
		return w.addDirLocked(root, path)
	})
}

func (w *NativeRecursiveWatcher) addDirLocked(root *watchRoot, dir string) error {
	if _, ok := root.dirs[dir]; ok {
		return nil
	}
	if w.dirRefs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirRefs[dir]++
	root.dirs[dir] = struct{}{}
	return nil
}

func (w *NativeRecursiveWatcher) releaseDirsLocked(root *watchRoot) {
	for dir := range root.dirs {
		w.releaseDirLocked(root, dir)
	}
}

func (w *NativeRecursiveWatcher) releaseDirLocked(root *watchRoot, dir string) {
	delete(root.dirs, dir)
	w.dirRefs[dir]--
	if w.dirRefs[dir] <= 0 {
		delete(w.dirRefs, dir)
		if w.fsw != nil {
			_ = w.fsw.Remove(dir)
		}
	}
}

func (w *NativeRecursiveWatcher) removeRootLocked(key string) {
	root, ok := w.roots[key]
	if !ok {
		return
	}
	delete(w.roots, key)
	if root.poller != nil {
		root.poller.Stop()
	}
	w.releaseDirsLocked(root)
}

func (w *NativeRecursiveWatcher) loop() {
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
			w.log(LogError, fmt.Sprintf("watcher error: %v", err))
		}
	}
}

func (w *NativeRecursiveWatcher) handleEvent(ev fsnotify.Event) {
	var change vfs.ChangeType
	switch {
	case ev.Op&fsnotify.Create != 0:
		change = vfs.ChangeAdded
	case ev.Op&fsnotify.Write != 0:
		change = vfs.ChangeUpdated
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		change = vfs.ChangeDeleted
	default:
		// Chmod only
		return
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.traceLocked("[raw] %s %s", ev.Op, ev.Name)

	accepted := false
	for _, root := range w.roots {
		rel, ok := relativeTo(root.req.Path, ev.Name)
		if !ok || isExcluded(root.excludes, rel) {
			continue
		}
		accepted = true

		switch change {
		case vfs.ChangeAdded:
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				_ = w.addTreeLocked(root, ev.Name)
			}
		case vfs.ChangeDeleted:
			for dir := range root.dirs {
				if dir == ev.Name || strings.HasPrefix(dir, ev.Name+string(filepath.Separator)) {
					w.releaseDirLocked(root, dir)
				}
			}
		}
	}
	w.mu.Unlock()

	if accepted {
		w.debouncer.Add(DiskChange{Path: ev.Name, Type: change})
	}
}

// enqueue hands a debounced batch to the dispatch goroutine.
func (w *NativeRecursiveWatcher) enqueue(batch []DiskChange) {
	select {
	case <-w.stopCh:
		return
	default:
	}

	if w.verbose.Load() {
		for _, c := range batch {
			w.log(LogTrace, fmt.Sprintf("%s %s", c.Type, c.Path))
		}
	}

	select {
	case w.batches <- batch:
	default:
		count := w.droppedBatches.Add(1)
		w.log(LogWarn, fmt.Sprintf("event buffer full, dropped batch of %d changes (%d dropped so far)", len(batch), count))
	}
}

func (w *NativeRecursiveWatcher) dispatch() {
	for {
		select {
		case <-w.stopCh:
			return
		case batch := <-w.batches:
			if w.onChange != nil {
				w.onChange(batch)
			}
		}
	}
}

func (w *NativeRecursiveWatcher) log(t LogType, msg string) {
	w.onLog(LogMessage{Type: t, Message: msg})
}

// logLocked and traceLocked are called with mu held; onLog must not call
// back into the watcher.
func (w *NativeRecursiveWatcher) logLocked(t LogType, msg string) {
	w.onLog(LogMessage{Type: t, Message: msg})
}

func (w *NativeRecursiveWatcher) traceLocked(format string, args ...any) {
	if w.verbose.Load() {
		w.onLog(LogMessage{Type: LogTrace, Message: fmt.Sprintf(format, args...)})
	}
}

// relativeTo returns path relative to root, and false when path is outside
// root.
func relativeTo(root, path string) (string, bool) {
	if path == root {
		return ".", true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return strings.TrimPrefix(path, prefix), true
}
