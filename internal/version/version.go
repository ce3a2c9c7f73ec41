// Package version identifies the kbai build. Release builds stamp the
// variables below with -ldflags -X; local builds fall back to the VCS
// revision the Go toolchain records, when there is one.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/54b3r/kbai-go/internal/version.Version=v0.3.0".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the banner printed by `kbai version`.
func String() string {
	return fmt.Sprintf("kbai %s (commit: %s, built: %s)", Version, commit(), BuildDate)
}

// commit returns Commit, or the first 7 characters of the embedded
// vcs.revision when Commit was not stamped.
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
