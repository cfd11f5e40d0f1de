package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docs"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/manifest"
	"git.home.luguber.info/inful/docpipe/internal/outputdir"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/verify"
)

// Stages returns the stage definitions of plan, in execution order.
func (o *Orchestrator) Stages(plan Plan) []pipeline.StageDef {
	s := plan.Stages
	return pipeline.NewPipeline().
		AddIf(s.Fetch, pipeline.StageFetchSource, o.stageFetchSource(plan)).
		AddIf(s.Install, pipeline.StageInstallDev, o.stageInstallDev).
		AddIf(s.Install, pipeline.StageInstallDocTooling, o.stageInstallDocTooling(plan)).
		AddIf(s.Generate, pipeline.StageEnsureOutput, o.stageEnsureOutput(plan)).
		AddIf(s.Generate, pipeline.StageGenerateDocs, o.stageGenerateDocs(plan)).
		AddIf(s.Generate && plan.Verify.Enabled, pipeline.StageVerifyOutput, o.stageVerifyOutput(plan)).
		Build()
}

// Run executes plan. It stops at the first failing stage and returns the
// report together with that stage's *pipeline.StageError.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*pipeline.Report, error) {
	if plan.BuildID == "" {
		plan.BuildID = uuid.NewString()
	}
	if plan.Command == "" {
		plan.Command = CommandBuild
	}
	st := pipeline.NewState(plan.BuildID, plan.Command)
	st.SourcePath = plan.TargetPath
	st.DocsPath = plan.DocsPath(st.SourcePath)
	st.OutputPath = plan.OutputPath(st.SourcePath)

	err := pipeline.Run(ctx, st, o.Stages(plan), o.observer)
	return st.Report, err
}

func (o *Orchestrator) stageFetchSource(plan Plan) pipeline.Stage {
	return func(ctx context.Context, st *pipeline.State) error {
		path, err := o.fetch(ctx, plan.RepositoryURL, plan.TargetPath, st.Report)
		if err != nil {
			return err
		}
		st.SourcePath = path
		st.DocsPath = plan.DocsPath(path)
		st.OutputPath = plan.OutputPath(path)
		return nil
	}
}

func (o *Orchestrator) stageInstallDev(ctx context.Context, st *pipeline.State) error {
	return o.installEditable(ctx, st.SourcePath, st.Report)
}

func (o *Orchestrator) stageInstallDocTooling(plan Plan) pipeline.Stage {
	return func(ctx context.Context, st *pipeline.State) error {
		return o.installTooling(ctx, plan.Tooling, st.Report)
	}
}

func (o *Orchestrator) stageEnsureOutput(plan Plan) pipeline.Stage {
	return func(_ context.Context, st *pipeline.State) error {
		if plan.OutputPolicy == config.OutputPolicyClean {
			if err := outputdir.Clean(st.OutputPath); err != nil {
				return err
			}
		}
		return o.EnsureOutputDirectory(st.OutputPath)
	}
}

func (o *Orchestrator) stageGenerateDocs(plan Plan) pipeline.Stage {
	return func(ctx context.Context, st *pipeline.State) error {
		previous, err := manifest.Load(st.OutputPath)
		if err != nil {
			slog.Warn("Ignoring unreadable source manifest", logfields.Path(st.OutputPath), logfields.Error(err))
			previous = nil
		}

		if err := o.GenerateDocs(ctx, st.DocsPath, st.OutputPath, plan.Generator); err != nil {
			return err
		}

		current, err := manifest.Build(st.DocsPath, docs.Options{Suffixes: plan.Generator.Suffixes, Exclude: []string{st.OutputPath}})
		if err != nil {
			slog.Warn("Failed to fingerprint documentation sources", logfields.Path(st.DocsPath), logfields.Error(err))
			return nil
		}
		st.DocSources = current.Sources()
		st.Report.PagesGenerated = countPages(st.OutputPath, st.DocSources)

		changes := manifest.Diff(previous, current)
		slog.Info("Documentation sources",
			slog.Int("total", len(st.DocSources)),
			slog.Int("added", len(changes.Added)),
			slog.Int("changed", len(changes.Changed)),
			slog.Int("removed", len(changes.Removed)))

		current.BuildID = st.BuildID
		if o.generator != nil {
			current.Generator = o.generator.Name()
		}
		if err := current.Save(st.OutputPath); err != nil {
			slog.Warn("Failed to write source manifest", logfields.Path(st.OutputPath), logfields.Error(err))
		}
		return nil
	}
}

func (o *Orchestrator) stageVerifyOutput(plan Plan) pipeline.Stage {
	return func(ctx context.Context, st *pipeline.State) error {
		res, err := verify.Run(ctx, st.DocsPath, st.OutputPath, verify.Options{
			Suffixes:   plan.Generator.Suffixes,
			CheckLinks: plan.Verify.CheckLinks,
		})
		if err != nil {
			return err
		}
		slog.Debug("Output verified", slog.Int("sources", len(res.Sources)), slog.Int("pages", len(res.Pages)))
		st.Report.PagesGenerated = len(res.Pages)
		if res.OK() {
			return nil
		}
		vErr := res.Err(plan.Verify.Strict)
		if plan.Verify.Strict && len(res.Missing) > 0 {
			return pipeline.NewFatalStageError(pipeline.StageVerifyOutput, vErr)
		}
		return pipeline.NewWarnStageError(pipeline.StageVerifyOutput, vErr)
	}
}

// countPages counts the sources whose HTML page exists under outputPath.
func countPages(outputPath string, sources []string) int {
	n := 0
	for _, rel := range sources {
		page := docs.DocFile{RelativePath: rel}.HTMLPath()
		if info, err := os.Stat(filepath.Join(outputPath, filepath.FromSlash(page))); err == nil && !info.IsDir() {
			n++
		}
	}
	return n
}
