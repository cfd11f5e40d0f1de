// Package commands implements the docpipe command line.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

// DefaultConfigPath is used when -c is not given. A missing file at this path means "defaults".
const DefaultConfigPath = "docpipe.yaml"

// Global carries process-wide state into subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// NewGlobal returns the state used by main.
func NewGlobal() *Global {
	return &Global{Logger: slog.Default(), Stdout: os.Stdout, Stderr: os.Stderr}
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (YAML, or TOML with a .toml extension)" default:"docpipe.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Fetch, install and generate the documentation"`
	Fetch    FetchCmd    `cmd:"" help:"Clone the project source"`
	Install  InstallCmd  `cmd:"" help:"Install the project in development mode and the doc tooling"`
	Generate GenerateCmd `cmd:"" help:"Generate HTML documentation from an existing source tree"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate the documentation whenever a doc source changes"`
	Daemon   DaemonCmd   `cmd:"" help:"Run full builds on a schedule"`
	History  HistoryCmd  `cmd:"" help:"List recent builds from the build history database"`
	Doctor   DoctorCmd   `cmd:"" help:"Report the external tools a build depends on"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; sets up logging once. The config file
// may later switch the handler to JSON.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = newLogger(g.Stderr, logLevel(c.Verbose, ""), "text")
	slog.SetDefault(g.Logger)
	return nil
}

// logLevel resolves the level: -v wins, then DOCPIPE_LOG_LEVEL, then the config value.
func logLevel(verbose bool, configured string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	name := os.Getenv("DOCPIPE_LOG_LEVEL")
	if name == "" {
		name = configured
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
