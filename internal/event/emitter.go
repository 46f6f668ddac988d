package event

import "sync"

// Emitter is an ordered list of listeners for payloads of type T.
//
// Fire calls listeners synchronously on the caller's goroutine, in
// registration order, outside of the emitter's lock; a listener may therefore
// register or dispose listeners while being called. Listeners added during a
// Fire are not called for that payload.
type Emitter[T any] struct {
	mu        sync.Mutex
	listeners []*listener[T]
	nextID    uint64
	disposed  bool

	// OnFirstListener and OnLastListener, when set, run after the listener
	// count moves from zero to one and from one to zero.
	OnFirstListener func()
	OnLastListener  func()
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// NewEmitter creates an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// On registers fn and returns a Disposable that removes it.
// Registering on a disposed emitter returns None.
func (e *Emitter[T]) On(fn func(T)) Disposable {
	if e == nil || fn == nil {
		return None
	}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return None
	}
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, &listener[T]{id: id, fn: fn})
	first := len(e.listeners) == 1
	hook := e.OnFirstListener
	e.mu.Unlock()

	if first && hook != nil {
		hook()
	}

	return OnDispose(func() {
		e.remove(id)
	})
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	removed := false
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			removed = true
			break
		}
	}
	last := removed && len(e.listeners) == 0
	hook := e.OnLastListener
	e.mu.Unlock()

	if last && hook != nil {
		hook()
	}
}

// Fire delivers payload to every registered listener.
func (e *Emitter[T]) Fire(payload T) {
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.disposed || len(e.listeners) == 0 {
		e.mu.Unlock()
		return
	}
	snapshot := make([]*listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(payload)
	}
}

// HasListeners reports whether at least one listener is registered.
func (e *Emitter[T]) HasListeners() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners) > 0
}

// Dispose drops every listener. Later Fire and On calls are no-ops.
func (e *Emitter[T]) Dispose() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.disposed = true
	e.listeners = nil
	e.mu.Unlock()
}

// Relay forwards every payload of src to dst and returns the subscription.
func Relay[T any](src, dst *Emitter[T]) Disposable {
	return src.On(dst.Fire)
}
