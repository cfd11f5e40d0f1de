package toolexec

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ToolInfo describes an executable found on PATH.
type ToolInfo struct {
	Name    string
	Path    string
	Version string
	Found   bool
}

var (
	semverRe = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)
	shortRe  = regexp.MustCompile(`(\d+\.\d+)`)
)

// Detect looks name up on PATH and runs it with versionArgs to read its
// version. Detection is best-effort: a tool that is present but fails to
// report a version is still Found.
func Detect(ctx context.Context, name string, versionArgs ...string) ToolInfo {
	info := ToolInfo{Name: name}
	path, err := exec.LookPath(name)
	if err != nil {
		return info
	}
	info.Path, info.Found = path, true

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	// #nosec G204 -- path comes from exec.LookPath of a fixed tool name
	out, err := exec.CommandContext(ctx, path, versionArgs...).CombinedOutput()
	if err != nil && len(out) == 0 {
		return info
	}
	info.Version = ParseVersion(string(out))
	return info
}

// ParseVersion extracts the version number from tool version output, e.g.
// "sphinx-build 7.2.6", "Python 3.12.1" or "pandoc 3.1.11.1".
func ParseVersion(output string) string {
	if m := semverRe.FindStringSubmatch(output); len(m) >= 2 {
		return m[1]
	}
	if m := shortRe.FindStringSubmatch(output); len(m) >= 2 {
		return m[1]
	}
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return line
}
