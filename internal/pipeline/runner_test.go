package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
)

type recordingObserver struct {
	started   []StageName
	completed map[StageName]StageResult
	buildDone *Report
	buildSeen bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{completed: map[StageName]StageResult{}}
}

func (r *recordingObserver) OnBuildStart(*Report)        { r.buildSeen = true }
func (r *recordingObserver) OnStageStart(s StageName)    { r.started = append(r.started, s) }
func (r *recordingObserver) OnBuildComplete(rep *Report) { r.buildDone = rep }
func (r *recordingObserver) OnStageComplete(s StageName, _ time.Duration, res StageResult) {
	r.completed[s] = res
}

func step(calls *[]StageName, name StageName, err error) Stage {
	return func(context.Context, *State) error {
		*calls = append(*calls, name)
		return err
	}
}

func fullPipeline(calls *[]StageName, failAt StageName, err error) []StageDef {
	p := NewPipeline()
	for _, n := range []StageName{StageFetchSource, StageInstallDev, StageInstallDocTooling, StageEnsureOutput, StageGenerateDocs} {
		var e error
		if n == failAt {
			e = err
		}
		p.Add(n, step(calls, n, e))
	}
	return p.Build()
}

func TestRunAllStagesInOrder(t *testing.T) {
	var calls []StageName
	st := NewState("b1", "build")
	obs := newRecordingObserver()

	err := Run(context.Background(), st, fullPipeline(&calls, "", nil), obs)
	require.NoError(t, err)

	assert.Equal(t, []StageName{StageFetchSource, StageInstallDev, StageInstallDocTooling, StageEnsureOutput, StageGenerateDocs}, calls)
	assert.Equal(t, calls, obs.started)
	assert.Equal(t, OutcomeSuccess, st.Report.Outcome)
	assert.Len(t, st.Report.StageDurations, 5)
	assert.True(t, obs.buildSeen)
	require.NotNil(t, obs.buildDone)
	assert.False(t, st.Report.End.IsZero())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	var calls []StageName
	st := NewState("b2", "build")
	installErr := fmt.Errorf("%w: pip exited 1", ErrInstallFailure)

	err := Run(context.Background(), st, fullPipeline(&calls, StageInstallDev, installErr), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInstallFailure)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageInstallDev, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)

	assert.Equal(t, []StageName{StageFetchSource, StageInstallDev}, calls)
	assert.False(t, st.Report.Ran(StageInstallDocTooling))
	assert.False(t, st.Report.Ran(StageGenerateDocs))
	assert.Equal(t, StageResultSkipped, st.Report.StageResults[StageGenerateDocs])
	assert.Equal(t, OutcomeFailed, st.Report.Outcome)

	require.Len(t, st.Report.Issues, 1)
	assert.Equal(t, IssueInstallFailure, st.Report.Issues[0].Code)
	stage, ok := st.Report.FailedStage()
	assert.True(t, ok)
	assert.Equal(t, StageInstallDev, stage)
}

func TestRunWarningContinues(t *testing.T) {
	var calls []StageName
	st := NewState("b3", "generate")
	defs := NewPipeline().
		Add(StageGenerateDocs, step(&calls, StageGenerateDocs, nil)).
		Add(StageVerifyOutput, step(&calls, StageVerifyOutput, NewWarnStageError(StageVerifyOutput, fmt.Errorf("%w: api.html -> missing.html", ErrBrokenLink)))).
		Build()

	require.NoError(t, Run(context.Background(), st, defs, nil))
	assert.Equal(t, OutcomeWarning, st.Report.Outcome)
	require.Len(t, st.Report.Issues, 1)
	assert.Equal(t, IssueBrokenLink, st.Report.Issues[0].Code)
	assert.Equal(t, SeverityWarning, st.Report.Issues[0].Severity)
}

func TestRunCanceledBeforeStage(t *testing.T) {
	var calls []StageName
	ctx, cancel := context.WithCancel(context.Background())
	defs := NewPipeline().
		Add(StageFetchSource, func(context.Context, *State) error { calls = append(calls, StageFetchSource); cancel(); return nil }).
		Add(StageInstallDev, step(&calls, StageInstallDev, nil)).
		Add(StageGenerateDocs, step(&calls, StageGenerateDocs, nil)).
		Build()
	st := NewState("b4", "build")

	err := Run(ctx, st, defs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []StageName{StageFetchSource}, calls)
	assert.Equal(t, OutcomeCanceled, st.Report.Outcome)
	assert.Equal(t, StageResultCanceled, st.Report.StageResults[StageInstallDev])
	assert.Equal(t, StageResultSkipped, st.Report.StageResults[StageGenerateDocs])
	assert.Equal(t, IssueCanceled, st.Report.Issues[0].Code)
}

func TestInterruptedToolIsCanceled(t *testing.T) {
	out := ClassifyStageResult(StageGenerateDocs, fmt.Errorf("sphinx-build interrupted: %w", context.Canceled))
	assert.Equal(t, StageResultCanceled, out.Result)
	assert.True(t, out.Abort)
}

func TestClassifyIssueCodes(t *testing.T) {
	cases := []struct {
		err  error
		want IssueCode
	}{
		{fmt.Errorf("%w: dial tcp", ErrSourceUnavailable), IssueSourceUnavailable},
		{fmt.Errorf("%w: x", ErrInstallFailure), IssueInstallFailure},
		{fmt.Errorf("%w: x", ErrGenerationFailure), IssueGenerationFailure},
		{fmt.Errorf("%w: x", ErrOutputDirectory), IssueOutputDirectory},
		{fmt.Errorf("%w: %w", ErrGenerationFailure, ErrMissingPage), IssueMissingPage},
		{errors.New("boom"), IssueGenericStageError},
	}
	for _, c := range cases {
		out := ClassifyStageResult(StageGenerateDocs, c.err)
		assert.Equal(t, c.want, out.IssueCode, c.err.Error())
		assert.Equal(t, StageResultFatal, out.Result)
	}
}

func TestStageErrorTransient(t *testing.T) {
	netErr := ferrors.NetworkError("connection reset").WithCause(ErrSourceUnavailable).Build()
	assert.True(t, NewFatalStageError(StageFetchSource, netErr).Transient())

	srcErr := ferrors.SourceError("repository not found").WithCause(ErrSourceUnavailable).Build()
	assert.False(t, NewFatalStageError(StageFetchSource, srcErr).Transient())
	assert.False(t, NewCanceledStageError(StageFetchSource, netErr).Transient())
}

func TestPipelineAddIf(t *testing.T) {
	noop := func(context.Context, *State) error { return nil }
	defs := NewPipeline().
		AddIf(false, StageFetchSource, noop).
		Add(StageEnsureOutput, noop).
		AddIf(true, StageGenerateDocs, noop).
		Build()
	assert.Equal(t, []StageName{StageEnsureOutput, StageGenerateDocs}, Names(defs))
}

func TestProgressObserverLines(t *testing.T) {
	var buf bytes.Buffer
	var calls []StageName
	st := NewState("b5", "install")
	defs := NewPipeline().
		Add(StageInstallDev, step(&calls, StageInstallDev, nil)).
		Add(StageInstallDocTooling, step(&calls, StageInstallDocTooling, fmt.Errorf("%w: no such package", ErrInstallFailure))).
		Build()

	_ = Run(context.Background(), st, defs, NewProgressObserver(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[1/2] install_dev ...", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[1/2] install_dev ... ok ("), lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "[2/2] install_doc_tooling ... FAILED ("), lines[3])
}

type countingRecorder struct {
	outcomes map[string]int
	issues   map[string]int
	stages   int
}

func (c *countingRecorder) ObserveStageDuration(string, time.Duration)      { c.stages++ }
func (c *countingRecorder) ObserveBuildDuration(time.Duration)              {}
func (c *countingRecorder) IncStageResult(string, metrics.ResultLabel)      {}
func (c *countingRecorder) IncBuildOutcome(o string)                        { c.outcomes[o]++ }
func (c *countingRecorder) ObserveToolDuration(string, time.Duration, bool) {}
func (c *countingRecorder) IncIssue(code, _ string)                         { c.issues[code]++ }
func (c *countingRecorder) IncRetry(string)                                 {}
func (c *countingRecorder) SetPagesGenerated(int)                           {}

func TestRecorderObserver(t *testing.T) {
	rec := &countingRecorder{outcomes: map[string]int{}, issues: map[string]int{}}
	var calls []StageName
	st := NewState("b6", "build")
	_ = Run(context.Background(), st, fullPipeline(&calls, StageFetchSource, fmt.Errorf("%w: unreachable", ErrSourceUnavailable)),
		MultiObserver{RecorderObserver{Recorder: rec}, nil, NoopObserver{}})

	assert.Equal(t, 1, rec.outcomes["failed"])
	assert.Equal(t, 1, rec.issues["SOURCE_UNAVAILABLE"])
	assert.Equal(t, 1, rec.stages)
}
