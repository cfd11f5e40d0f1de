package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the docpipe release, set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/docpipe/internal/version.Version=v0.3.0".
var Version = "dev"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	commit := GitCommit
	if commit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 12 {
					commit = s.Value[:12]
				}
			}
		}
	}
	return fmt.Sprintf("docpipe %s (commit %s, built %s)", Version, commit, BuildTime)
}
