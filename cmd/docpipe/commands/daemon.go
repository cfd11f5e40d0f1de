package commands

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/orchestrator"
	"git.home.luguber.info/inful/docpipe/internal/schedule"
	"git.home.luguber.info/inful/docpipe/internal/workspace"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	SourceFlags `embed:""`
	DocsFlags   `embed:""`
	Every       time.Duration `help:"Build interval (overrides schedule.every)"`
	Cron        string        `help:"Cron expression (overrides schedule.cron)"`
	NoImmediate bool          `help:"Wait for the first tick instead of building at startup"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	d.SourceFlags.apply(cfg)
	d.DocsFlags.apply(cfg)
	if d.Every > 0 || d.Cron != "" {
		cfg.Schedule = config.ScheduleConfig{Every: d.Every, Cron: d.Cron}
	}
	// Every tick after the first finds the previous checkout in place.
	if !cfg.Source.Ephemeral {
		cfg.Source.OnExisting = config.OnExistingReuse
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	s, err := openSession(g, root, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	build := func(ctx context.Context) error {
		ws := workspace.FromConfig(cfg.Source)
		if _, err := ws.Create(); err != nil {
			return err
		}
		defer func() {
			if err := ws.Cleanup(); err != nil {
				slog.Warn("Failed to clean up workspace", logfields.Error(err))
			}
		}()
		plan := orchestrator.PlanFromConfig(cfg, orchestrator.CommandBuild)
		plan.TargetPath = ws.CheckoutPath(cfg.Source.URL, cfg.Source.Path)
		_, err := s.run(ctx, plan, d.Report)
		return err
	}

	sched, err := schedule.New(cfg.Schedule, !d.NoImmediate, build)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	slog.Info("Daemon started, waiting for shutdown signal")
	return sched.Run(ctx)
}
