package eventstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Observer appends pipeline lifecycle events to a Store. Store failures are
// logged and never affect the build.
type Observer struct {
	store   Store
	timeout time.Duration

	mu      sync.Mutex
	buildID string
}

var _ pipeline.Observer = (*Observer)(nil)

// NewObserver records into store.
func NewObserver(store Store) *Observer {
	return &Observer{store: store, timeout: 5 * time.Second}
}

func (o *Observer) OnBuildStart(r *pipeline.Report) {
	o.mu.Lock()
	o.buildID = r.BuildID
	o.mu.Unlock()
	o.append(BuildStarted(r))
}

func (o *Observer) OnStageStart(pipeline.StageName) {}

func (o *Observer) OnStageComplete(stage pipeline.StageName, d time.Duration, res pipeline.StageResult) {
	o.mu.Lock()
	id := o.buildID
	o.mu.Unlock()
	o.append(StageCompleted(id, stage, d, res))
}

func (o *Observer) OnBuildComplete(r *pipeline.Report) {
	o.append(BuildCompleted(r))
}

func (o *Observer) append(e Event, err error) {
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		err = o.store.Append(ctx, e)
	}
	if err != nil {
		slog.Warn("Failed to record build event", logfields.BuildID(e.BuildID), slog.String("event", string(e.Type)), logfields.Error(err))
	}
}
