package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/generator"
	"git.home.luguber.info/inful/docpipe/internal/installer"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/outputdir"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/retry"
	"git.home.luguber.info/inful/docpipe/internal/source"
)

// SourceFetcher checks out a repository and returns the checkout path.
type SourceFetcher interface {
	Fetch(ctx context.Context, repositoryURL, targetPath string) (string, error)
}

// Orchestrator runs the build against injected collaborators.
type Orchestrator struct {
	fetcher   SourceFetcher
	installer installer.PackageInstaller
	generator generator.DocGenerator
	observer  pipeline.Observer
	recorder  metrics.Recorder
	retry     retry.Policy
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver receives run lifecycle events.
func WithObserver(obs pipeline.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithRecorder records retry counts.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRetry enables backoff for transient fetch and install failures.
func WithRetry(p retry.Policy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// New creates an orchestrator. Any collaborator may be nil if the stages using it are never run.
func New(fetcher SourceFetcher, inst installer.PackageInstaller, gen generator.DocGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		installer: inst,
		generator: gen,
		observer:  pipeline.NoopObserver{},
		recorder:  metrics.NoopRecorder{},
		retry:     retry.NoRetry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchSource clones repositoryURL into targetPath and returns the checkout path.
// Every failure matches pipeline.ErrSourceUnavailable.
func (o *Orchestrator) FetchSource(ctx context.Context, repositoryURL, targetPath string) (string, error) {
	return o.fetch(ctx, repositoryURL, targetPath, nil)
}

func (o *Orchestrator) fetch(ctx context.Context, repositoryURL, targetPath string, report *pipeline.Report) (string, error) {
	if o.fetcher == nil {
		return "", errors.InternalError("no source fetcher configured").Build()
	}
	var path string
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		p, err := o.fetcher.Fetch(ctx, repositoryURL, targetPath)
		path = p
		return err
	}, source.IsRetryable, o.onRetry(pipeline.StageFetchSource, report))
	if err != nil {
		return "", classify(ctx, err, pipeline.ErrSourceUnavailable, errors.SourceError, "failed to fetch source")
	}
	return path, nil
}

// InstallDevelopmentMode installs the project at projectPath so that source
// edits take effect without reinstalling. Failures match pipeline.ErrInstallFailure.
func (o *Orchestrator) InstallDevelopmentMode(ctx context.Context, projectPath string) error {
	return o.installEditable(ctx, projectPath, nil)
}

func (o *Orchestrator) installEditable(ctx context.Context, projectPath string, report *pipeline.Report) error {
	if o.installer == nil {
		return errors.InternalError("no package installer configured").Build()
	}
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		return o.installer.InstallEditable(ctx, projectPath)
	}, installer.IsRetryable, o.onRetry(pipeline.StageInstallDev, report))
	return classify(ctx, err, pipeline.ErrInstallFailure, errors.InstallError, "development install failed")
}

// InstallDocToolingDependencies installs the documentation-only packages.
// A partially successful install is not rolled back.
func (o *Orchestrator) InstallDocToolingDependencies(ctx context.Context, packages []string) error {
	return o.installTooling(ctx, packages, nil)
}

func (o *Orchestrator) installTooling(ctx context.Context, packages []string, report *pipeline.Report) error {
	if o.installer == nil {
		return errors.InternalError("no package installer configured").Build()
	}
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		return o.installer.InstallPackages(ctx, packages)
	}, installer.IsRetryable, o.onRetry(pipeline.StageInstallDocTooling, report))
	return classify(ctx, err, pipeline.ErrInstallFailure, errors.InstallError, "doc tooling install failed")
}

// EnsureOutputDirectory creates path if it is missing. Existing contents are never touched.
func (o *Orchestrator) EnsureOutputDirectory(path string) error {
	return outputdir.Ensure(path)
}

// GenerateDocs renders sourceDocsPath into outputPath, which must already exist.
// Failures match pipeline.ErrGenerationFailure and are never retried.
func (o *Orchestrator) GenerateDocs(ctx context.Context, sourceDocsPath, outputPath string, opts generator.Options) error {
	if o.generator == nil {
		return errors.InternalError("no documentation generator configured").Build()
	}
	if info, err := os.Stat(outputPath); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", outputPath)
		}
		return errors.GenerationError("output directory does not exist").
			WithCause(fmt.Errorf("%w: %w", pipeline.ErrGenerationFailure, err)).
			WithContext("path", outputPath).
			Build()
	}
	slog.Info("Generating documentation",
		logfields.Generator(o.generator.Name()),
		logfields.Path(sourceDocsPath),
		logfields.Output(outputPath))
	err := o.generator.Generate(ctx, sourceDocsPath, outputPath, opts)
	return classify(ctx, err, pipeline.ErrGenerationFailure, errors.GenerationError, "documentation generation failed")
}

func (o *Orchestrator) onRetry(stage pipeline.StageName, report *pipeline.Report) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		if report != nil {
			report.Retries++
		}
		o.recorder.IncRetry(string(stage))
		slog.Warn("Transient failure, retrying",
			logfields.Stage(string(stage)),
			logfields.Attempt(attempt),
			logfields.Duration(delay),
			logfields.Error(err))
	}
}

// classify guarantees that err matches sentinel. Cancellation is passed
// through untouched so the runner reports the stage as canceled.
func classify(ctx context.Context, err, sentinel error, build func(string) *errors.ErrorBuilder, msg string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if stderrors.Is(err, sentinel) {
		return err
	}
	return build(msg).WithCause(fmt.Errorf("%w: %w", sentinel, err)).Build()
}
