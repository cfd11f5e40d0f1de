package eventstore

import (
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// EventType names a build lifecycle event.
type EventType string

const (
	TypeBuildStarted   EventType = "BuildStarted"
	TypeStageCompleted EventType = "StageCompleted"
	TypeBuildCompleted EventType = "BuildCompleted"
)

// Event is one stored record. Payload is JSON whose shape depends on Type.
type Event struct {
	ID        int64
	BuildID   string
	Type      EventType
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}

// BuildStartedPayload is the payload of TypeBuildStarted.
type BuildStartedPayload struct {
	Command string   `json:"command"`
	Stages  []string `json:"stages"`
	Version string   `json:"version"`
}

// StageCompletedPayload is the payload of TypeStageCompleted.
type StageCompletedPayload struct {
	Stage      string `json:"stage"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildCompletedPayload is the payload of TypeBuildCompleted.
type BuildCompletedPayload struct {
	Outcome        string           `json:"outcome"`
	DurationMS     int64            `json:"duration_ms"`
	FailedStage    string           `json:"failed_stage,omitempty"`
	Error          string           `json:"error,omitempty"`
	Issues         []pipeline.Issue `json:"issues,omitempty"`
	Retries        int              `json:"retries,omitempty"`
	PagesGenerated int              `json:"pages_generated,omitempty"`
}

// NewEvent marshals payload into an event stamped with the current time.
func NewEvent(buildID string, typ EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %w", ErrMarshalPayloadFailed, typ, err)
	}
	return Event{BuildID: buildID, Type: typ, Timestamp: time.Now(), Payload: data}, nil
}

// Decode unmarshals the payload of e into T.
func Decode[T any](e Event) (T, error) {
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %w", ErrUnmarshalPayloadFailed, e.Type, err)
	}
	return v, nil
}

// BuildStarted creates the first event of a run from its report.
func BuildStarted(r *pipeline.Report) (Event, error) {
	return NewEvent(r.BuildID, TypeBuildStarted, BuildStartedPayload{
		Command: r.Command,
		Stages:  stageStrings(r.Stages),
		Version: r.Version,
	})
}

// StageCompleted records the result of one stage.
func StageCompleted(buildID string, stage pipeline.StageName, d time.Duration, res pipeline.StageResult) (Event, error) {
	return NewEvent(buildID, TypeStageCompleted, StageCompletedPayload{
		Stage:      string(stage),
		Result:     string(res),
		DurationMS: d.Milliseconds(),
	})
}

// BuildCompleted records the final state of a run.
func BuildCompleted(r *pipeline.Report) (Event, error) {
	p := BuildCompletedPayload{
		Outcome:        string(r.Outcome),
		DurationMS:     r.Duration().Milliseconds(),
		Issues:         r.Issues,
		Retries:        r.Retries,
		PagesGenerated: r.PagesGenerated,
	}
	if stage, ok := r.FailedStage(); ok {
		p.FailedStage = string(stage)
	}
	if err := r.Err(); err != nil {
		p.Error = err.Error()
	}
	return NewEvent(r.BuildID, TypeBuildCompleted, p)
}

func stageStrings(stages []pipeline.StageName) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
