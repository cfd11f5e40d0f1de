package generator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/toolexec"
)

// SphinxGenerator invokes sphinx-build. Tool output is streamed by the runner.
type SphinxGenerator struct {
	runner     toolexec.Runner
	executable string
	recorder   metrics.Recorder
}

// NewSphinxGenerator uses executable, or sphinx-build from PATH when empty.
func NewSphinxGenerator(runner toolexec.Runner, executable string) *SphinxGenerator {
	if executable == "" {
		executable = config.DefaultSphinxBuild
	}
	return &SphinxGenerator{runner: runner, executable: executable, recorder: metrics.NoopRecorder{}}
}

// WithRecorder attaches a metrics recorder for tool durations.
func (g *SphinxGenerator) WithRecorder(r metrics.Recorder) *SphinxGenerator {
	if r != nil {
		g.recorder = r
	}
	return g
}

func (g *SphinxGenerator) Name() string { return config.GeneratorSphinx }

// Args builds the sphinx-build argument list.
func (g *SphinxGenerator) Args(sourceDir, outputDir string, opts Options) []string {
	builder := opts.Builder
	if builder == "" {
		builder = config.DefaultBuilder
	}
	args := []string{"-b", builder}
	if opts.WarningsAsErrors {
		args = append(args, "-W", "--keep-going")
	}
	if opts.Jobs > 0 {
		args = append(args, "-j", strconv.Itoa(opts.Jobs))
	}
	if opts.Quiet {
		args = append(args, "-q")
	}
	if opts.FreshEnv {
		args = append(args, "-E")
	}
	defines := opts.Defines
	if opts.Title != "" {
		if _, ok := defines["project"]; !ok {
			defines = maps.Clone(opts.Defines)
			if defines == nil {
				defines = map[string]string{}
			}
			defines["project"] = opts.Title
		}
	}
	keys := make([]string, 0, len(defines))
	for k := range defines {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "-D", k+"="+defines[k])
	}
	args = append(args, opts.ExtraArgs...)
	return append(args, sourceDir, outputDir)
}

func (g *SphinxGenerator) Generate(ctx context.Context, sourceDir, outputDir string, opts Options) error {
	cmd := toolexec.Command{Name: g.executable, Args: g.Args(sourceDir, outputDir, opts)}
	slog.Info("Running sphinx-build", logfields.Generator(g.Name()), logfields.Path(sourceDir), logfields.Output(outputDir))

	start := time.Now()
	res, err := g.runner.Run(ctx, cmd)
	g.recorder.ObserveToolDuration(g.executable, time.Since(start), err == nil)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", g.executable, ctxErr)
	}
	msg := "sphinx-build reported errors"
	if stderrors.Is(err, toolexec.ErrToolNotFound) {
		msg = g.executable + " not found; is Sphinx installed?"
	}
	return failure(msg, err).
		WithContext("command", cmd.String()).
		WithContext("exit_code", res.ExitCode).
		WithContext("output", toolexec.Tail(err)).
		Build()
}
