package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
)

// Observer receives callbacks around stage execution and the build lifecycle.
// Run always delivers OnBuildStart and OnBuildComplete, even for failed runs.
type Observer interface {
	OnBuildStart(report *Report)
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result StageResult)
	OnBuildComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnBuildStart(*Report)                                  {}
func (NoopObserver) OnStageStart(StageName)                                {}
func (NoopObserver) OnStageComplete(StageName, time.Duration, StageResult) {}
func (NoopObserver) OnBuildComplete(*Report)                               {}

// MultiObserver fans callbacks out to every non-nil observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnBuildStart(r *Report) {
	for _, o := range m {
		if o != nil {
			o.OnBuildStart(r)
		}
	}
}

func (m MultiObserver) OnStageStart(s StageName) {
	for _, o := range m {
		if o != nil {
			o.OnStageStart(s)
		}
	}
}

func (m MultiObserver) OnStageComplete(s StageName, d time.Duration, res StageResult) {
	for _, o := range m {
		if o != nil {
			o.OnStageComplete(s, d, res)
		}
	}
}

func (m MultiObserver) OnBuildComplete(r *Report) {
	for _, o := range m {
		if o != nil {
			o.OnBuildComplete(r)
		}
	}
}

// LogObserver writes lifecycle events to a slog logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogObserver) OnBuildStart(r *Report) {
	l.logger().Info("Build started", logfields.BuildID(r.BuildID), slog.String("command", r.Command), slog.Int("stages", len(r.Stages)))
}

func (l LogObserver) OnStageStart(s StageName) {
	l.logger().Debug("Stage started", logfields.Stage(string(s)))
}

func (l LogObserver) OnStageComplete(s StageName, d time.Duration, res StageResult) {
	level := slog.LevelInfo
	switch res {
	case StageResultWarning:
		level = slog.LevelWarn
	case StageResultFatal, StageResultCanceled:
		level = slog.LevelError
	}
	l.logger().Log(context.Background(), level, "Stage completed", logfields.Stage(string(s)), logfields.Result(string(res)), logfields.Duration(d))
}

func (l LogObserver) OnBuildComplete(r *Report) {
	attrs := []any{logfields.BuildID(r.BuildID), logfields.Result(string(r.Outcome)), logfields.Duration(r.Duration())}
	if err := r.Err(); err != nil {
		attrs = append(attrs, logfields.Error(err))
	}
	for _, w := range r.Warnings {
		l.logger().Warn("Build warning", logfields.BuildID(r.BuildID), logfields.Error(w))
	}
	if r.Outcome == OutcomeFailed || r.Outcome == OutcomeCanceled {
		l.logger().Error("Build finished", attrs...)
		return
	}
	l.logger().Info("Build finished", attrs...)
}

// ProgressObserver prints one line per stage, e.g. "[2/5] install_dev ... ok (1.2s)".
type ProgressObserver struct {
	W io.Writer

	mu    sync.Mutex
	total int
	index map[StageName]int
}

// NewProgressObserver writes progress lines to w.
func NewProgressObserver(w io.Writer) *ProgressObserver {
	return &ProgressObserver{W: w}
}

func (p *ProgressObserver) OnBuildStart(r *Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = len(r.Stages)
	p.index = make(map[StageName]int, len(r.Stages))
	for i, s := range r.Stages {
		p.index[s] = i + 1
	}
}

func (p *ProgressObserver) OnStageStart(s StageName) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.W, "%s %s ...\n", p.prefix(s), s)
}

func (p *ProgressObserver) OnStageComplete(s StageName, d time.Duration, res StageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.W, "%s %s ... %s (%s)\n", p.prefix(s), s, progressWord(res), d.Round(100*time.Millisecond))
}

func (p *ProgressObserver) OnBuildComplete(*Report) {}

func (p *ProgressObserver) prefix(s StageName) string {
	return fmt.Sprintf("[%d/%d]", p.index[s], p.total)
}

func progressWord(res StageResult) string {
	switch res {
	case StageResultSuccess:
		return "ok"
	case StageResultWarning:
		return "warning"
	case StageResultCanceled:
		return "canceled"
	case StageResultSkipped:
		return "skipped"
	default:
		return "FAILED"
	}
}

// RecorderObserver adapts a metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnBuildStart(*Report)   {}
func (r RecorderObserver) OnStageStart(StageName) {}

func (r RecorderObserver) OnStageComplete(stage StageName, d time.Duration, res StageResult) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveStageDuration(string(stage), d)
	r.Recorder.IncStageResult(string(stage), metrics.ResultLabel(res))
}

func (r RecorderObserver) OnBuildComplete(report *Report) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveBuildDuration(report.Duration())
	r.Recorder.IncBuildOutcome(string(report.Outcome))
	for _, is := range report.Issues {
		r.Recorder.IncIssue(string(is.Code), string(is.Stage))
	}
	if report.PagesGenerated > 0 {
		r.Recorder.SetPagesGenerated(report.PagesGenerated)
	}
}
