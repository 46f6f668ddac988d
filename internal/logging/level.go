package logging

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/remotefs/internal/event"
)

// LevelTrace is more detailed than slog.LevelDebug. It is the only level at
// which watchers log verbosely.
const LevelTrace = slog.Level(-8)

// IsVerbose reports whether level enables verbose watcher output.
func IsVerbose(level slog.Level) bool {
	return level <= LevelTrace
}

// LevelSource is the ambient log level. It implements slog.Leveler so a
// handler can use it directly, and notifies subscribers when it changes.
type LevelSource struct {
	level   slog.LevelVar
	changed *event.Emitter[slog.Level]
}

// NewLevelSource creates a source set to level.
func NewLevelSource(level slog.Level) *LevelSource {
	s := &LevelSource{changed: event.NewEmitter[slog.Level]()}
	s.level.Set(level)
	return s
}

// Level returns the current level.
func (s *LevelSource) Level() slog.Level {
	return s.level.Level()
}

// SetLevel changes the level and notifies subscribers if it differs.
func (s *LevelSource) SetLevel(level slog.Level) {
	if s.level.Level() == level {
		return
	}
	s.level.Set(level)
	s.changed.Fire(level)
}

// OnDidChange registers fn to be called with each new level.
func (s *LevelSource) OnDidChange(fn func(slog.Level)) event.Disposable {
	return s.changed.On(fn)
}

// ParseLevel converts a level name to slog.Level. Names are trace, debug,
// info, warn (or warning) and error.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// LevelName returns the configuration name of level.
func LevelName(level slog.Level) string {
	switch {
	case level <= LevelTrace:
		return "trace"
	case level <= slog.LevelDebug:
		return "debug"
	case level <= slog.LevelInfo:
		return "info"
	case level <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// replaceLevel renders LevelTrace as "TRACE" instead of "DEBUG-4".
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
