// Package version holds build metadata, set with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2026-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String is the one-line form printed by `devdash version`.
func String() string {
	return fmt.Sprintf("devdash %s (commit=%s, built=%s, go=%s, %s/%s)",
		Version, Commit, BuildDate, GoVersion, runtime.GOOS, runtime.GOARCH)
}
