// Package notify publishes build lifecycle events to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Publisher is the subset of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body of every notification.
type Message struct {
	BuildID    string    `json:"build_id"`
	Event      string    `json:"event"` // started, stage, completed
	Command    string    `json:"command,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Result     string    `json:"result,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier is a pipeline.Observer that publishes to <subject>.<event>.
// Publish failures are logged and never affect the build.
type Notifier struct {
	pub     Publisher
	subject string

	mu      sync.Mutex
	buildID string
}

var _ pipeline.Observer = (*Notifier)(nil)

// New publishes through pub under subject.
func New(pub Publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject}
}

// Connect dials the NATS server at url. The returned close function drains the connection.
func Connect(url, subject string) (*Notifier, func(), error) {
	conn, err := nats.Connect(url,
		nats.Name("docpipe"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifications enabled", logfields.URL(url), slog.String("subject", subject))
	closeFn := func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}
	return New(conn, subject), closeFn, nil
}

func (n *Notifier) OnBuildStart(r *pipeline.Report) {
	n.mu.Lock()
	n.buildID = r.BuildID
	n.mu.Unlock()
	n.publish("started", Message{BuildID: r.BuildID, Command: r.Command})
}

func (n *Notifier) OnStageStart(pipeline.StageName) {}

func (n *Notifier) OnStageComplete(stage pipeline.StageName, d time.Duration, res pipeline.StageResult) {
	n.mu.Lock()
	id := n.buildID
	n.mu.Unlock()
	n.publish("stage", Message{BuildID: id, Stage: string(stage), Result: string(res), DurationMS: d.Milliseconds()})
}

func (n *Notifier) OnBuildComplete(r *pipeline.Report) {
	m := Message{BuildID: r.BuildID, Command: r.Command, Outcome: string(r.Outcome), DurationMS: r.Duration().Milliseconds()}
	if stage, ok := r.FailedStage(); ok {
		m.Stage = string(stage)
	}
	if err := r.Err(); err != nil {
		m.Error = err.Error()
	}
	n.publish("completed", m)
}

func (n *Notifier) publish(event string, m Message) {
	m.Event = event
	m.Timestamp = time.Now().UTC()
	data, err := json.Marshal(m)
	if err == nil {
		err = n.pub.Publish(n.subject+"."+event, data)
	}
	if err != nil {
		slog.Warn("Failed to publish build notification", logfields.BuildID(m.BuildID), slog.String("event", event), logfields.Error(err))
		return
	}
	slog.Debug("Published build notification", logfields.BuildID(m.BuildID), slog.String("event", event))
}
