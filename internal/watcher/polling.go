package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/moby/patternmatcher"

	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// PollingWatcher detects changes by periodically scanning a tree.
// Used as a fallback when fsnotify is not available.
type PollingWatcher struct {
	root     string
	interval time.Duration
	shallow  bool
	excludes *patternmatcher.PatternMatcher
	emit     func(DiskChange)

	mu        sync.Mutex
	fileState map[string]fileSnapshot
	stopCh    chan struct{}
	stopped   bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher for root. When shallow is set
// only root and its direct children are scanned. excludes may be nil.
func NewPollingWatcher(root string, interval time.Duration, shallow bool, excludes *patternmatcher.PatternMatcher, emit func(DiskChange)) *PollingWatcher {
	return &PollingWatcher{
		root:      root,
		interval:  interval,
		shallow:   shallow,
		excludes:  excludes,
		emit:      emit,
		fileState: make(map[string]fileSnapshot),
		stopCh:    make(chan struct{}),
	}
}

// Start takes the baseline scan and then polls until ctx is done or Stop is
// called. It returns once the baseline is taken; polling continues on its
// own goroutine.
func (p *PollingWatcher) Start(ctx context.Context) error {
	baseline, err := p.scan()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.fileState = baseline
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.Stop()
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.Poll()
			}
		}
	}()
	return nil
}

// Poll compares the tree with the previous scan and emits the differences.
func (p *PollingWatcher) Poll() {
	current, err := p.scan()
	if err != nil {
		// Root vanished: everything known is gone.
		current = map[string]fileSnapshot{}
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	var changes []DiskChange
	for path, snap := range current {
		prev, exists := p.fileState[path]
		switch {
		case !exists:
			changes = append(changes, DiskChange{Path: path, Type: vfs.ChangeAdded})
		case !snap.isDir && (prev.modTime != snap.modTime || prev.size != snap.size):
			changes = append(changes, DiskChange{Path: path, Type: vfs.ChangeUpdated})
		}
	}
	for path := range p.fileState {
		if _, exists := current[path]; !exists {
			changes = append(changes, DiskChange{Path: path, Type: vfs.ChangeDeleted})
		}
	}
	p.fileState = current
	p.mu.Unlock()

	for _, c := range changes {
		p.emit(c)
	}
}

// Stop stops polling. Safe to call multiple times.
func (p *PollingWatcher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
}

func (p *PollingWatcher) scan() (map[string]fileSnapshot, error) {
	state := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil // Skip entries we can't access
		}

		if path != p.root {
			rel, relErr := filepath.Rel(p.root, path)
			if relErr != nil {
				return nil
			}
			if isExcluded(p.excludes, rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}

		if p.shallow && d.IsDir() && path != p.root {
			return filepath.SkipDir
		}
		return nil
	})
	return state, err
}

// isExcluded reports whether rel, or one of its parents, matches excludes.
func isExcluded(excludes *patternmatcher.PatternMatcher, rel string) bool {
	if excludes == nil || rel == "." || rel == "" {
		return false
	}
	matched, err := excludes.MatchesOrParentMatches(rel)
	return err == nil && matched
}
