package event

import "sync"

// Disposable releases a resource. Dispose must be safe to call more than once.
type Disposable interface {
	Dispose()
}

// OnDispose wraps fn so it runs at most once.
func OnDispose(fn func()) Disposable {
	if fn == nil {
		return None
	}
	return &onceDisposable{fn: fn}
}

type onceDisposable struct {
	once sync.Once
	fn   func()
}

func (d *onceDisposable) Dispose() {
	d.once.Do(d.fn)
}

// None is a Disposable that does nothing.
var None Disposable = noopDisposable{}

type noopDisposable struct{}

func (noopDisposable) Dispose() {}

// Combine returns a Disposable that releases each of the given disposables
// exactly once, in order. Nil entries are skipped.
func Combine(items ...Disposable) Disposable {
	return OnDispose(func() {
		for _, item := range items {
			if item != nil {
				item.Dispose()
			}
		}
	})
}

// Store collects disposables and releases them together. Items added after
// the store has been disposed are released immediately.
type Store struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add registers d with the store and returns it.
func (s *Store) Add(d Disposable) Disposable {
	if d == nil {
		return None
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		d.Dispose()
		return d
	}
	s.items = append(s.items, d)
	s.mu.Unlock()
	return d
}

// Len reports the number of disposables currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dispose releases every held disposable. Safe to call multiple times.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	items := s.items
	s.items = nil
	s.mu.Unlock()

	for _, item := range items {
		item.Dispose()
	}
}

// IsDisposed reports whether Dispose has been called.
func (s *Store) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
