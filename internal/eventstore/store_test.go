package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndGetByBuildID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e, err := NewEvent("b1", TypeStageCompleted, StageCompletedPayload{Stage: "fetch_source", Result: "success", DurationMS: 12})
	require.NoError(t, err)
	e.Metadata = map[string]string{"host": "ci"}
	require.NoError(t, s.Append(ctx, e))
	require.NoError(t, s.Append(ctx, Event{BuildID: "b2", Type: TypeBuildStarted, Payload: []byte(`{}`)}))

	events, err := s.GetByBuildID(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypeStageCompleted, events[0].Type)
	assert.Equal(t, map[string]string{"host": "ci"}, events[0].Metadata)
	assert.WithinDuration(t, e.Timestamp, events[0].Timestamp, time.Millisecond)

	p, err := Decode[StageCompletedPayload](events[0])
	require.NoError(t, err)
	assert.Equal(t, "fetch_source", p.Stage)
	assert.Equal(t, int64(12), p.DurationMS)
}

func TestGetRange(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, Event{BuildID: id, Type: TypeBuildStarted, Timestamp: base.Add(time.Duration(i) * time.Hour), Payload: []byte(`{}`)}))
	}
	events, err := s.GetRange(ctx, base.Add(30*time.Minute), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].BuildID)
	assert.Equal(t, "c", events[1].BuildID)
}

func TestRecentBuildIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"first", "second", "first", "third"} {
		require.NoError(t, s.Append(ctx, Event{BuildID: id, Type: TypeStageCompleted, Payload: []byte(`{}`)}))
	}
	ids, err := s.RecentBuildIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second"}, ids)

	all, err := s.RecentBuildIDs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, all)
}

func TestDecodeRejectsBadPayload(t *testing.T) {
	_, err := Decode[BuildStartedPayload](Event{Type: TypeBuildStarted, Payload: []byte("{")})
	assert.ErrorIs(t, err, ErrUnmarshalPayloadFailed)
}

func TestObserverRecordsPipelineRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st := pipeline.NewState("build-1", "build")
	defs := pipeline.NewPipeline().
		Add(pipeline.StageFetchSource, func(context.Context, *pipeline.State) error { return nil }).
		Add(pipeline.StageInstallDev, func(context.Context, *pipeline.State) error {
			return pipeline.NewFatalStageError(pipeline.StageInstallDev, pipeline.ErrInstallFailure)
		}).
		Add(pipeline.StageGenerateDocs, func(context.Context, *pipeline.State) error { return nil }).
		Build()
	err := pipeline.Run(ctx, st, defs, NewObserver(s))
	require.Error(t, err)

	history, err := History(ctx, s, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	h := history[0]
	assert.Equal(t, "build-1", h.BuildID)
	assert.Equal(t, "build", h.Command)
	assert.Equal(t, string(pipeline.OutcomeFailed), h.Status)
	assert.Equal(t, string(pipeline.StageInstallDev), h.FailedStage)
	assert.Contains(t, h.Error, "install failure")
	assert.Equal(t, 1, h.Issues)
	require.Len(t, h.Stages, 2)
	assert.Equal(t, "success", h.Stages[0].Result)
	assert.Equal(t, "fatal", h.Stages[1].Result)
}

type failingStore struct{ Store }

func (failingStore) Append(context.Context, Event) error { return errors.New("disk full") }

func TestObserverIgnoresStoreFailures(t *testing.T) {
	st := pipeline.NewState("b", "build")
	defs := pipeline.NewPipeline().Add(pipeline.StageEnsureOutput, func(context.Context, *pipeline.State) error { return nil }).Build()
	assert.NoError(t, pipeline.Run(context.Background(), st, defs, NewObserver(failingStore{})))
}

func TestSummarizeRunningBuild(t *testing.T) {
	e, err := NewEvent("b", TypeBuildStarted, BuildStartedPayload{Command: "watch"})
	require.NoError(t, err)
	s := Summarize([]Event{e})
	assert.Equal(t, "running", s.Status)
	assert.Equal(t, "watch", s.Command)
}
