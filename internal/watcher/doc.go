// Package watcher turns watch requests into native file watchers.
//
// Recursive requests from any number of callers are collected in a Registry
// and reconciled by a Coordinator onto a single RecursiveWatcher. Reconciling
// is debounced: a burst of AddFolder and Dispose calls results in one
// SetFolders call carrying the latest snapshot. The watcher is created on the
// first non-empty reconciliation and then kept until the Coordinator itself
// is disposed, even if every request goes away in between.
//
// Non-recursive requests go through a FileWatchAdapter, which creates one
// FileWatcher per call with no sharing.
//
// Both follow the ambient log level: watchers are verbose exactly when the
// level is logging.LevelTrace, and change with it at runtime.
//
// Usage:
//
//	svc := watcher.NewService(watcher.ServiceOptions{
//	    RecursiveFactory: watcher.NewNativeRecursiveFactory(watcher.DefaultOptions()),
//	    FileFactory:      watcher.NewNativeFileFactory(watcher.DefaultOptions()),
//	    Levels:           levels,
//	})
//	defer svc.Dispose()
//
//	svc.OnDidChangeFile(func(changes []vfs.FileChange) { ... })
//	handle, err := svc.Watch("/path/to/project", vfs.WatchOptions{Recursive: true})
//	if err != nil {
//	    return err
//	}
//	defer handle.Dispose()
package watcher
