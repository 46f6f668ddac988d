package watcher

import (
	"log/slog"

	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// DiskChange is a change reported by a native watcher.
type DiskChange struct {
	Path string
	Type vfs.ChangeType
}

// LogType is the severity of a watcher log message.
type LogType int

const (
	LogTrace LogType = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

// Level maps t to a slog level.
func (t LogType) Level() slog.Level {
	switch t {
	case LogTrace:
		return logging.LevelTrace
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (t LogType) String() string {
	return logging.LevelName(t.Level())
}

// LogMessage is a message a native watcher wants logged.
type LogMessage struct {
	Type    LogType
	Message string
}

// RecursiveWatcher watches a set of folders recursively.
type RecursiveWatcher interface {
	// SetFolders replaces the watched set. Folders no longer listed stop
	// reporting; new ones start.
	SetFolders(folders []Request) error
	SetVerboseLogging(verbose bool)
	Dispose()
}

// FileWatcher watches a single path without descending into it.
type FileWatcher interface {
	SetVerboseLogging(verbose bool)
	Dispose()
}

// RecursiveWatcherFactory creates the recursive watcher for an initial
// folder set.
type RecursiveWatcherFactory func(folders []Request, onChange func([]DiskChange), onLog func(LogMessage), verbose bool) (RecursiveWatcher, error)

// FileWatcherFactory creates a watcher for one path.
type FileWatcherFactory func(path string, onChange func([]DiskChange), onLog func(LogMessage), verbose bool) (FileWatcher, error)

// LevelSource is the ambient log level watchers follow.
type LevelSource interface {
	Level() slog.Level
	OnDidChange(fn func(slog.Level)) event.Disposable
}

// toFileChanges converts a native batch, keeping its order.
func toFileChanges(changes []DiskChange) []vfs.FileChange {
	out := make([]vfs.FileChange, len(changes))
	for i, c := range changes {
		out[i] = vfs.FileChange{Resource: vfs.File(c.Path), Type: c.Type}
	}
	return out
}
