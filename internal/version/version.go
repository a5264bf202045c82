// Package version reports SkillPath build information. Variables are set at
// build time via ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Name is the product name used in banners and the User-Agent.
const Name = "SkillPath"

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string suitable for -version output.
func Info() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		Name, Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns just the version string (e.g., "0.1.0" or "dev").
func Short() string {
	return Version
}

// UserAgent returns the User-Agent sent on outbound requests.
func UserAgent() string {
	return fmt.Sprintf("skillpath/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Map returns version info as a map for JSON serialization.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}
