package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docpipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	buildDuration  prom.Histogram
	stageResults   *prom.CounterVec
	buildOutcome   *prom.CounterVec
	toolDuration   *prom.HistogramVec
	issues         *prom.CounterVec
	retries        *prom.CounterVec
	pagesGenerated prom.Gauge
	lastSuccess    prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg (a new registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		toolDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of external tool invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"tool", "result"}),
		issues: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Report issues by code and stage",
		}, []string{"code", "stage"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried transient failures by stage",
		}, []string{"stage"}),
		pagesGenerated: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_generated",
			Help:      "HTML pages found in the output directory after the last build",
		}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful build",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.toolDuration, pr.issues, pr.retries, pr.pagesGenerated, pr.lastSuccess)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
	if outcome == "success" || outcome == "warning" {
		p.lastSuccess.SetToCurrentTime()
	}
}

func (p *PrometheusRecorder) ObserveToolDuration(tool string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.toolDuration.WithLabelValues(tool, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncIssue(code, stage string) {
	if p == nil {
		return
	}
	p.issues.WithLabelValues(code, stage).Inc()
}

func (p *PrometheusRecorder) IncRetry(stage string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) SetPagesGenerated(n int) {
	if p == nil {
		return
	}
	p.pagesGenerated.Set(float64(n))
}

// WriteTextfile writes every metric in reg to path in the Prometheus text
// format. The write is atomic so node_exporter never reads a partial file.
func WriteTextfile(reg *prom.Registry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prom.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
