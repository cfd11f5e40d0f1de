// Package generator turns a documentation source tree into HTML.
//
// Two implementations exist: SphinxGenerator drives the sphinx-build
// executable, NativeGenerator renders a reStructuredText and Markdown subset
// in process for environments without Python.
package generator

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/toolexec"
)

// DocGenerator renders sourceDir into outputDir. The output directory must exist.
type DocGenerator interface {
	Name() string
	Generate(ctx context.Context, sourceDir, outputDir string, opts Options) error
}

// Options are the generator invocation settings.
type Options struct {
	Builder          string
	WarningsAsErrors bool
	Jobs             int
	Quiet            bool
	FreshEnv         bool
	Defines          map[string]string
	ExtraArgs        []string
	Title            string
	Suffixes         []string
}

// OptionsFromConfig maps the docs section onto generator options.
func OptionsFromConfig(cfg config.DocsConfig) Options {
	opts := Options{
		Builder:          cfg.Builder,
		WarningsAsErrors: cfg.WarningsAsErrors,
		Jobs:             cfg.Jobs,
		Quiet:            cfg.Quiet,
		FreshEnv:         cfg.FreshEnv,
		Defines:          maps.Clone(cfg.Defines),
		ExtraArgs:        slices.Clone(cfg.ExtraArgs),
		Title:            cfg.Title,
		Suffixes:         cfg.SourceSuffixes(),
	}
	if opts.Builder == "" {
		opts.Builder = config.DefaultBuilder
	}
	return opts
}

// New selects the generator named by kind.
func New(kind string, runner toolexec.Runner, cfg config.DocsConfig) (DocGenerator, error) {
	switch kind {
	case "", config.GeneratorSphinx:
		return NewSphinxGenerator(runner, cfg.SphinxBuild), nil
	case config.GeneratorNative:
		return NewNativeGenerator(), nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown generator %q", kind)).
			WithContext("generator", kind).
			Build()
	}
}

// failure wraps cause so that errors.Is(err, pipeline.ErrGenerationFailure) holds.
func failure(msg string, cause error) *errors.ErrorBuilder {
	return errors.GenerationError(msg).WithCause(fmt.Errorf("%w: %w", pipeline.ErrGenerationFailure, cause))
}
