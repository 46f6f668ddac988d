// Package logging configures structured logging for remotefs.
//
// Logs are JSON lines written to a size-rotated file under
// ~/.remotefs/logs/ and optionally mirrored to stderr. The handler level is
// backed by a LevelSource, so raising or lowering the ambient level at
// runtime affects both slog filtering and the verbosity of file watchers
// that subscribe to it.
package logging
