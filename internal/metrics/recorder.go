package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
	ResultSkipped  ResultLabel = "skipped"
)

// Recorder defines observability hooks for build, stage and tool metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // success|warning|failed|canceled
	ObserveToolDuration(tool string, d time.Duration, success bool)
	IncIssue(code, stage string)
	IncRetry(stage string)
	SetPagesGenerated(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)      {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)              {}
func (NoopRecorder) IncStageResult(string, ResultLabel)              {}
func (NoopRecorder) IncBuildOutcome(string)                          {}
func (NoopRecorder) ObserveToolDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncIssue(string, string)                         {}
func (NoopRecorder) IncRetry(string)                                 {}
func (NoopRecorder) SetPagesGenerated(int)                           {}
