package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/eventstore"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/generator"
	"git.home.luguber.info/inful/docpipe/internal/installer"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/notify"
	"git.home.luguber.info/inful/docpipe/internal/orchestrator"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/retry"
	"git.home.luguber.info/inful/docpipe/internal/source"
	"git.home.luguber.info/inful/docpipe/internal/toolexec"
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadConfig reads the configuration file. A missing file at the default
// path yields the built-in defaults so that flag-only invocations work.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	path := root.Config
	if _, err := os.Stat(path); os.IsNotExist(err) && isDefaultConfigPath(path) {
		slog.Debug("No configuration file; using defaults", logfields.Path(path))
		cfg, err := config.Parse(nil, config.FormatYAML)
		if err != nil {
			return nil, err
		}
		configureLogging(g, root, cfg)
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	configureLogging(g, root, cfg)
	return cfg, nil
}

// isDefaultConfigPath also accepts the absolute form kong produces for path flags.
func isDefaultConfigPath(path string) bool {
	if path == DefaultConfigPath {
		return true
	}
	abs, err := filepath.Abs(DefaultConfigPath)
	return err == nil && path == abs
}

func configureLogging(g *Global, root *CLI, cfg *config.Config) {
	g.Logger = newLogger(g.Stderr, logLevel(root.Verbose, cfg.Logging.Level), cfg.Logging.Format)
	slog.SetDefault(g.Logger)
}

// session holds the collaborators of one command invocation.
type session struct {
	cfg      *config.Config
	global   *Global
	registry *prom.Registry
	recorder metrics.Recorder
	orch     *orchestrator.Orchestrator
	closers  []func()
}

func openSession(g *Global, root *CLI, cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg, global: g, recorder: metrics.NoopRecorder{}}
	if cfg.Metrics.Textfile != "" {
		s.registry = prom.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}

	runner := toolexec.NewExecRunner()
	runner.Stdout, runner.Stderr = g.Stdout, g.Stderr

	gen, err := generator.New(cfg.Docs.Generator, runner, cfg.Docs)
	if err != nil {
		return nil, err
	}
	switch x := gen.(type) {
	case *generator.SphinxGenerator:
		x.WithRecorder(s.recorder)
	case *generator.NativeGenerator:
		x.WithRecorder(s.recorder)
	}

	fetchOpts := source.OptionsFromConfig(cfg.Source)
	if root.Verbose {
		fetchOpts.Progress = g.Stderr
	}

	observers := pipeline.MultiObserver{
		pipeline.LogObserver{Logger: g.Logger},
		pipeline.NewProgressObserver(g.Stdout),
		pipeline.RecorderObserver{Recorder: s.recorder},
	}
	if cfg.History.Database != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Database)
		if err != nil {
			s.Close()
			return nil, errors.EventStoreError("failed to open build history").
				WithCause(err).
				WithContext("path", cfg.History.Database).
				Build()
		}
		s.closers = append(s.closers, func() { _ = store.Close() })
		observers = append(observers, eventstore.NewObserver(store))
	}
	if cfg.Notify.NATSURL != "" {
		n, closeFn, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			// Notifications are best-effort; the build runs without them.
			slog.Warn("NATS notifications disabled", logfields.URL(cfg.Notify.NATSURL), logfields.Error(err))
		} else {
			s.closers = append(s.closers, closeFn)
			observers = append(observers, n)
		}
	}

	s.orch = orchestrator.New(
		source.NewFetcher(fetchOpts),
		installer.NewPipInstaller(runner, cfg.Install).WithRecorder(s.recorder),
		gen,
		orchestrator.WithObserver(observers),
		orchestrator.WithRecorder(s.recorder),
		orchestrator.WithRetry(retry.FromConfig(cfg.Retry)),
	)
	return s, nil
}

// run executes plan, exports metrics and prints the summary.
func (s *session) run(ctx context.Context, plan orchestrator.Plan, reportPath string) (*pipeline.Report, error) {
	report, err := s.orch.Run(ctx, plan)
	if s.registry != nil {
		if werr := metrics.WriteTextfile(s.registry, s.cfg.Metrics.Textfile); werr != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(s.cfg.Metrics.Textfile), logfields.Error(werr))
		}
	}
	if reportPath != "" {
		if werr := writeReport(report, reportPath); werr != nil {
			slog.Warn("Failed to write report", logfields.Path(reportPath), logfields.Error(werr))
		}
	}
	_, _ = fmt.Fprintln(s.global.Stdout, renderSummary(report))
	return report, err
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func writeReport(r *pipeline.Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
