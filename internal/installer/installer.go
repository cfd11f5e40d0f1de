// Package installer installs the project under documentation and its doc
// tooling into the active Python environment.
package installer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/toolexec"
)

// PackageInstaller installs Python packages. Partial installs are never rolled back.
type PackageInstaller interface {
	// InstallEditable installs the project at projectPath so that source edits
	// take effect without reinstalling.
	InstallEditable(ctx context.Context, projectPath string) error
	// InstallPackages resolves and installs the named packages.
	InstallPackages(ctx context.Context, packages []string) error
}

// PipInstaller drives pip (or setup.py) through a toolexec.Runner.
type PipInstaller struct {
	runner   toolexec.Runner
	python   string
	method   string
	indexURL string
	upgrade  bool
	extra    []string
	recorder metrics.Recorder
}

// NewPipInstaller creates an installer from the install section.
func NewPipInstaller(runner toolexec.Runner, cfg config.InstallConfig) *PipInstaller {
	python := cfg.Python
	if python == "" {
		python = config.DefaultPython
	}
	method := cfg.Method
	if method == "" {
		method = config.InstallMethodPip
	}
	return &PipInstaller{
		runner:   runner,
		python:   python,
		method:   method,
		indexURL: cfg.IndexURL,
		upgrade:  cfg.Upgrade,
		extra:    append([]string(nil), cfg.ExtraArgs...),
		recorder: metrics.NoopRecorder{},
	}
}

// WithRecorder attaches a metrics recorder for tool durations.
func (p *PipInstaller) WithRecorder(r metrics.Recorder) *PipInstaller {
	if r != nil {
		p.recorder = r
	}
	return p
}

// InstallEditable runs `python -m pip install -e <path>`, or `python setup.py develop`
// inside the project when the setup.py method is configured.
func (p *PipInstaller) InstallEditable(ctx context.Context, projectPath string) error {
	var cmd toolexec.Command
	switch p.method {
	case config.InstallMethodSetupPy:
		cmd = toolexec.Command{Name: p.python, Args: []string{"setup.py", "develop"}, Dir: projectPath}
	default:
		args := append([]string{"-m", "pip", "install"}, p.pipFlags()...)
		args = append(args, "-e", projectPath)
		cmd = toolexec.Command{Name: p.python, Args: args}
	}
	slog.Info("Installing project in development mode", logfields.Path(projectPath), slog.String("method", p.method))
	return p.run(ctx, cmd, "development install failed")
}

// InstallPackages runs `python -m pip install [flags] pkgs...`. An empty list is a no-op.
func (p *PipInstaller) InstallPackages(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		slog.Debug("No packages to install")
		return nil
	}
	args := append([]string{"-m", "pip", "install"}, p.pipFlags()...)
	args = append(args, packages...)
	slog.Info("Installing documentation tooling", logfields.Packages(packages))
	return p.run(ctx, toolexec.Command{Name: p.python, Args: args}, "package install failed")
}

func (p *PipInstaller) pipFlags() []string {
	var flags []string
	if p.upgrade {
		flags = append(flags, "--upgrade")
	}
	if p.indexURL != "" {
		flags = append(flags, "--index-url", p.indexURL)
	}
	return append(flags, p.extra...)
}

func (p *PipInstaller) run(ctx context.Context, cmd toolexec.Command, msg string) error {
	start := time.Now()
	res, err := p.runner.Run(ctx, cmd)
	p.recorder.ObserveToolDuration(toolName(cmd), time.Since(start), err == nil)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", cmd.Name, ctxErr)
	}
	tail := toolexec.Tail(err)
	b := errors.InstallError(msg)
	if transientOutput(tail) {
		b = b.Retryable()
	}
	return b.WithCause(fmt.Errorf("%w: %w", pipeline.ErrInstallFailure, err)).
		WithContext("command", cmd.String()).
		WithContext("exit_code", res.ExitCode).
		WithContext("output", tail).
		Build()
}

// pip output fragments that indicate the package index could not be reached.
var transientMarkers = []string{
	"temporary failure in name resolution",
	"connection refused",
	"connection reset",
	"connection timed out",
	"read timed out",
	"network is unreachable",
	"max retries exceeded",
	"proxyerror",
	"newconnectionerror",
}

func transientOutput(out string) bool {
	l := strings.ToLower(out)
	for _, m := range transientMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether an install failed because the package index was unreachable.
func IsRetryable(err error) bool {
	ce, ok := errors.AsClassified(err)
	return ok && ce.RetryStrategy() == errors.RetryBackoff
}

func toolName(cmd toolexec.Command) string {
	if len(cmd.Args) >= 2 && cmd.Args[0] == "-m" {
		return cmd.Args[1]
	}
	if len(cmd.Args) >= 1 && cmd.Args[0] == "setup.py" {
		return "setup.py"
	}
	return cmd.Name
}
