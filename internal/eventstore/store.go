// Package eventstore keeps an append-only history of documentation builds.
package eventstore

import (
	"context"
	"time"
)

// Store persists build events.
type Store interface {
	Append(ctx context.Context, e Event) error
	// GetByBuildID returns the events of one build in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)
	// GetRange returns events with start <= timestamp <= end in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	// RecentBuildIDs returns up to limit build IDs, most recently started first.
	RecentBuildIDs(ctx context.Context, limit int) ([]string, error)
	Close() error
}
