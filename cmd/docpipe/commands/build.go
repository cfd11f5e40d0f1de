package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/orchestrator"
	"git.home.luguber.info/inful/docpipe/internal/workspace"
)

// SourceFlags override the source section.
type SourceFlags struct {
	Repo   string `help:"Repository URL to fetch (overrides source.url)"`
	Target string `help:"Checkout directory (overrides source.path)" type:"path"`
}

// DocsFlags override the docs section.
type DocsFlags struct {
	Docs      string `help:"Documentation source directory (overrides docs.source_dir)"`
	Output    string `short:"o" help:"Output directory (overrides docs.output_dir)"`
	Generator string `help:"Generator to use: sphinx or native (overrides docs.generator)"`
	Clean     bool   `help:"Empty the output directory before generating"`
	Report    string `help:"Write the run report as JSON to this file" type:"path"`
}

func (f SourceFlags) apply(cfg *config.Config) {
	if f.Repo != "" {
		cfg.Source.URL = f.Repo
	}
	if f.Target != "" {
		cfg.Source.Path = f.Target
	}
}

func (f DocsFlags) apply(cfg *config.Config) {
	if f.Docs != "" {
		cfg.Docs.SourceDir = f.Docs
	}
	if f.Output != "" {
		cfg.Docs.OutputDir = f.Output
	}
	if f.Generator != "" {
		cfg.Docs.Generator = f.Generator
	}
	if f.Clean {
		cfg.Docs.OutputPolicy = config.OutputPolicyClean
	}
}

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SourceFlags `embed:""`
	DocsFlags   `embed:""`
	SkipFetch   bool `help:"Use the existing checkout instead of cloning"`
	SkipInstall bool `help:"Do not run the install stages"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	b.SourceFlags.apply(cfg)
	b.DocsFlags.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	stages := orchestrator.AllStages()
	stages.Fetch = !b.SkipFetch
	stages.Install = !b.SkipInstall

	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, root, cfg, orchestrator.CommandBuild, stages, b.Report)
}

// FetchCmd implements the 'fetch' command.
type FetchCmd struct {
	SourceFlags `embed:""`
}

func (f *FetchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	f.SourceFlags.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if cfg.Source.Ephemeral {
		return errors.ValidationError("fetch keeps the checkout; source.ephemeral is only valid for build and daemon").
			WithContext("command", orchestrator.CommandFetch).
			Build()
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, root, cfg, orchestrator.CommandFetch, orchestrator.StagesFor(orchestrator.CommandFetch), "")
}

// InstallCmd implements the 'install' command.
type InstallCmd struct {
	Target  string   `help:"Project source tree (overrides source.path)" type:"path"`
	Tooling []string `help:"Doc tooling packages (overrides install.tooling)"`
}

func (i *InstallCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if i.Target != "" {
		cfg.Source.Path = i.Target
	}
	if len(i.Tooling) > 0 {
		cfg.Install.Tooling = i.Tooling
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, root, cfg, orchestrator.CommandInstall, orchestrator.StagesFor(orchestrator.CommandInstall), "")
}

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Target    string `help:"Project source tree that docs and output paths are relative to (overrides source.path)" type:"path"`
	DocsFlags `embed:""`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if c.Target != "" {
		cfg.Source.Path = c.Target
	}
	c.DocsFlags.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, root, cfg, orchestrator.CommandGenerate, orchestrator.StagesFor(orchestrator.CommandGenerate), c.Report)
}

// runPlan runs one pipeline. An ephemeral workspace lives for the duration of the run.
func runPlan(ctx context.Context, g *Global, root *CLI, cfg *config.Config, command string, stages orchestrator.Stages, reportPath string) error {
	s, err := openSession(g, root, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	plan := orchestrator.PlanFromConfig(cfg, command)
	plan.Stages = stages
	if stages.Fetch {
		ws := workspace.FromConfig(cfg.Source)
		if _, err := ws.Create(); err != nil {
			return err
		}
		defer func() {
			if err := ws.Cleanup(); err != nil {
				slog.Warn("Failed to clean up workspace", logfields.Error(err))
			}
		}()
		plan.TargetPath = ws.CheckoutPath(cfg.Source.URL, cfg.Source.Path)
	}
	_, err = s.run(ctx, plan, reportPath)
	return err
}
