// Package event provides the observer and resource-release primitives shared
// by the file system provider and the watch components.
//
// An Emitter[T] keeps an ordered list of listeners and fires payloads to them
// synchronously. Registering a listener returns a Disposable; releasing it
// removes the listener. Disposables compose with Combine, and every
// Disposable built by this package releases at most once.
//
// Usage:
//
//	changes := event.NewEmitter[[]vfs.FileChange]()
//	sub := changes.On(func(batch []vfs.FileChange) {
//	    // react to batch
//	})
//	defer sub.Dispose()
//
//	changes.Fire(batch)
package event
