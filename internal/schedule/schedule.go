// Package schedule runs full builds periodically for the daemon command.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// RunFunc performs one scheduled build.
type RunFunc func(ctx context.Context) error

// Scheduler wraps a gocron scheduler holding a single build job. The job runs
// in singleton mode: a tick that fires while a build is running is dropped.
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	expr      string
	run       RunFunc

	mu   sync.Mutex
	ctx  context.Context
	runs int
}

// New validates sc and registers the build job. With immediate, the first
// build starts as soon as Run is called.
func New(sc config.ScheduleConfig, immediate bool, run RunFunc) (*Scheduler, error) {
	def, expr, err := definition(sc)
	if err != nil {
		return nil, err
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	sch := &Scheduler{scheduler: s, expr: expr, run: run, ctx: context.Background()}
	opts := []gocron.JobOption{
		gocron.WithName("docpipe-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediate {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.NewJob(def, gocron.NewTask(sch.execute), opts...)
	if err != nil {
		_ = s.Shutdown()
		return nil, errors.ValidationError("invalid build schedule").
			WithCause(err).
			WithContext("schedule", expr).
			Build()
	}
	sch.job = job
	return sch, nil
}

func definition(sc config.ScheduleConfig) (gocron.JobDefinition, string, error) {
	switch {
	case sc.Every > 0 && sc.Cron != "":
		return nil, "", errors.ValidationError("schedule.every and schedule.cron are mutually exclusive").Build()
	case sc.Every > 0:
		return gocron.DurationJob(sc.Every), "every " + sc.Every.String(), nil
	case sc.Cron != "":
		return gocron.CronJob(sc.Cron, false), "cron " + sc.Cron, nil
	default:
		return nil, "", errors.ValidationError("a schedule requires schedule.every or schedule.cron").Build()
	}
}

// Run starts the scheduler and blocks until ctx is canceled. A build in
// progress sees the cancellation through its context.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.scheduler.Start()
	attrs := []any{logfields.Schedule(s.expr)}
	if next, err := s.job.NextRun(); err == nil {
		attrs = append(attrs, slog.Time("next_run", next))
	}
	slog.Info("Scheduler started", attrs...)

	<-ctx.Done()
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Runs returns how many builds were started.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) execute() {
	s.mu.Lock()
	ctx := s.ctx
	s.runs++
	n := s.runs
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	slog.Info("Executing scheduled build", logfields.Schedule(s.expr), slog.Int("run", n))
	if err := s.run(ctx); err != nil {
		slog.Error("Scheduled build failed", logfields.Schedule(s.expr), logfields.Duration(time.Since(start)), logfields.Error(err))
		return
	}
	slog.Info("Scheduled build finished", logfields.Schedule(s.expr), logfields.Duration(time.Since(start)))
}
