package watcher

import (
	"sync"
	"time"

	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// Debouncer coalesces rapid changes to the same path. Changes within the
// window are merged according to these rules:
//   - Added + Updated = Added (file is still new)
//   - Added + Deleted = nothing (file never really existed)
//   - Updated + Deleted = Deleted (file is gone)
//   - Deleted + Added = Updated (file was replaced)
//
// Each flush emits one batch ordered by when each path was first seen.
type Debouncer struct {
	window time.Duration
	emit   func([]DiskChange)

	mu      sync.Mutex
	pending map[string]vfs.ChangeType
	order   []string
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer that passes each batch to emit.
func NewDebouncer(window time.Duration, emit func([]DiskChange)) *Debouncer {
	return &Debouncer{
		window:  window,
		emit:    emit,
		pending: make(map[string]vfs.ChangeType),
	}
}

// Add records a change and restarts the window.
func (d *Debouncer) Add(change DiskChange) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[change.Path]; ok {
		merged, keep := coalesce(existing, change.Type)
		if keep {
			d.pending[change.Path] = merged
		} else {
			delete(d.pending, change.Path)
			d.removeFromOrder(change.Path)
		}
	} else {
		d.pending[change.Path] = change.Type
		d.order = append(d.order, change.Path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.Flush)
}

// coalesce merges a new change into an existing one. keep is false when the
// two cancel out.
func coalesce(existing, next vfs.ChangeType) (merged vfs.ChangeType, keep bool) {
	switch existing {
	case vfs.ChangeAdded:
		switch next {
		case vfs.ChangeUpdated:
			return vfs.ChangeAdded, true
		case vfs.ChangeDeleted:
			return 0, false
		}
	case vfs.ChangeDeleted:
		if next == vfs.ChangeAdded {
			return vfs.ChangeUpdated, true
		}
	}
	return next, true
}

func (d *Debouncer) removeFromOrder(path string) {
	for i, p := range d.order {
		if p == path {
			d.order = append(d.order[:i:i], d.order[i+1:]...)
			return
		}
	}
}

// Flush emits pending changes now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || len(d.order) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]DiskChange, 0, len(d.order))
	for _, p := range d.order {
		batch = append(batch, DiskChange{Path: p, Type: d.pending[p]})
	}
	d.pending = make(map[string]vfs.ChangeType)
	d.order = nil
	d.mu.Unlock()

	d.emit(batch)
}

// Stop drops pending changes. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
	d.order = nil
}
