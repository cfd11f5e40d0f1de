package eventstore

import (
	"context"
	"time"
)

const statusRunning = "running"

// BuildSummary is the read model of one build, folded from its events.
type BuildSummary struct {
	BuildID        string
	Command        string
	Version        string
	Status         string // running, or the build outcome
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	Stages         []StageCompletedPayload
	FailedStage    string
	Error          string
	Issues         int
	PagesGenerated int
}

// Summarize folds the events of one build into a summary. Events with
// undecodable payloads are skipped.
func Summarize(events []Event) BuildSummary {
	var s BuildSummary
	for _, e := range events {
		if s.BuildID == "" {
			s.BuildID = e.BuildID
			s.StartedAt = e.Timestamp
			s.Status = statusRunning
		}
		switch e.Type {
		case TypeBuildStarted:
			p, err := Decode[BuildStartedPayload](e)
			if err != nil {
				continue
			}
			s.Command, s.Version, s.StartedAt = p.Command, p.Version, e.Timestamp
		case TypeStageCompleted:
			if p, err := Decode[StageCompletedPayload](e); err == nil {
				s.Stages = append(s.Stages, p)
			}
		case TypeBuildCompleted:
			p, err := Decode[BuildCompletedPayload](e)
			if err != nil {
				continue
			}
			s.Status = p.Outcome
			s.CompletedAt = e.Timestamp
			s.Duration = time.Duration(p.DurationMS) * time.Millisecond
			s.FailedStage = p.FailedStage
			s.Error = p.Error
			s.Issues = len(p.Issues)
			s.PagesGenerated = p.PagesGenerated
		}
	}
	return s
}

// History returns summaries of the most recent builds, newest first.
func History(ctx context.Context, store Store, limit int) ([]BuildSummary, error) {
	ids, err := store.RecentBuildIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]BuildSummary, 0, len(ids))
	for _, id := range ids {
		events, err := store.GetByBuildID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(events))
	}
	return out, nil
}
