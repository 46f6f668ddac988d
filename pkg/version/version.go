// Package version provides build and version information for remotefs.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current version of remotefs. Set via ldflags at build time:
//
//	-X github.com/Aman-CERP/remotefs/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// ProtocolVersion is the version of the daemon wire protocol. A client and a
// daemon with different protocol versions cannot talk to each other.
const ProtocolVersion = 1

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	Date            string `json:"date"`
	GoVersion       string `json:"go_version"`
	ProtocolVersion int    `json:"protocol_version"`
	OS              string `json:"os"`
	Arch            string `json:"arch"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("remotefs %s (commit: %s, built: %s, go: %s, protocol: %d)",
		Version, commit(), Date, GoVersion, ProtocolVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:         Version,
		Commit:          commit(),
		Date:            Date,
		GoVersion:       GoVersion,
		ProtocolVersion: ProtocolVersion,
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
	}
}

// commit falls back to the VCS revision stamped by the go tool when no
// ldflags were given.
func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return Commit
}
