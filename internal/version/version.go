// Package version holds the vendor-qc build identity.
package version

import "fmt"

// Build information, injected with -ldflags "-X .../internal/version.Version=v1.2.0" at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// GetVersion returns the release tag, or "dev" for local builds.
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// GetFullVersion returns the version with build metadata.
// Format: "v1.2.0 (commit: abc123, built: 2025-03-03T10:30:00Z)".
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", GetVersion(), Commit, Date)
}
