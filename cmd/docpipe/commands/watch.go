package commands

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/orchestrator"
	"git.home.luguber.info/inful/docpipe/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Target    string `help:"Project source tree (overrides source.path)" type:"path"`
	DocsFlags `embed:""`
	Debounce  time.Duration `help:"Quiet period before regenerating (overrides watch.debounce)"`
	NoInitial bool          `help:"Do not generate once before watching"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if w.Target != "" {
		cfg.Source.Path = w.Target
	}
	w.DocsFlags.apply(cfg)
	if w.Debounce > 0 {
		cfg.Watch.Debounce = w.Debounce
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	s, err := openSession(g, root, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	plan := orchestrator.PlanFromConfig(cfg, orchestrator.CommandGenerate)
	regenerate := func(ctx context.Context) error {
		_, err := s.run(ctx, plan, w.Report)
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if !w.NoInitial {
		// Failures are already reported; keep watching.
		_ = regenerate(ctx)
	}

	watcher := watch.New(plan.DocsPath(plan.TargetPath), plan.OutputPath(plan.TargetPath),
		watch.Options{Debounce: cfg.Watch.Debounce, Suffixes: plan.Generator.Suffixes}, regenerate)
	return watcher.Run(ctx)
}
