package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the history database. Use ":memory:" for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrInitializeSchemaFailed, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_build_id ON events(build_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp_ms);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores e. A zero timestamp is replaced by the current time.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if e.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("%w: %w", ErrMarshalPayloadFailed, err)
		}
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (build_id, event_type, timestamp_ms, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		e.BuildID, string(e.Type), ts.UnixMilli(), e.Payload, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEventAppendFailed, err)
	}
	return nil
}

func (s *SQLiteStore) GetByBuildID(ctx context.Context, buildID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, event_type, timestamp_ms, payload, metadata FROM events WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, event_type, timestamp_ms, payload, metadata FROM events WHERE timestamp_ms >= ? AND timestamp_ms <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *SQLiteStore) RecentBuildIDs(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT build_id FROM events GROUP BY build_id ORDER BY MIN(id) DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEventScanFailed, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventScanFailed, err)
	}
	return ids, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			e            Event
			typ          string
			tsMillis     int64
			metadataJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.BuildID, &typ, &tsMillis, &e.Payload, &metadataJSON); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEventScanFailed, err)
		}
		e.Type = EventType(typ)
		e.Timestamp = time.UnixMilli(tsMillis)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnmarshalPayloadFailed, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventScanFailed, err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
