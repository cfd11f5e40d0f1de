package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyName       = "name"
	KeyTool       = "tool"
	KeyArgs       = "args"
	KeyPackages   = "packages"
	KeyGenerator  = "generator"
	KeyOutput     = "output"
	KeyAttempt    = "attempt"
	KeyResult     = "result"
	KeySchedule   = "schedule"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Tool(t string) slog.Attr         { return slog.String(KeyTool, t) }
func Args(a []string) slog.Attr       { return slog.Any(KeyArgs, a) }
func Packages(p []string) slog.Attr   { return slog.Any(KeyPackages, p) }
func Generator(g string) slog.Attr    { return slog.String(KeyGenerator, g) }
func Output(o string) slog.Attr       { return slog.String(KeyOutput, o) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Result(r string) slog.Attr       { return slog.String(KeyResult, r) }
func Schedule(s string) slog.Attr     { return slog.String(KeySchedule, s) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
