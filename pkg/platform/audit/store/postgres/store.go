package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "tradesync/pkg/platform/audit"
	txcontext "tradesync/pkg/platform/tx"
)

// Store implements audit.Store on a run_events table. It is used when no
// Kafka brokers are configured but the trade store is PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the run_events table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_events (
			id UUID PRIMARY KEY,
			type VARCHAR(64) NOT NULL,
			category VARCHAR(32) NOT NULL,
			run_id VARCHAR(64),
			occurred_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate run events: %w", err)
	}
	return nil
}

// Append inserts the event. Re-appending the same ID is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
		event.ID = id
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO run_events (id, type, category, run_id, occurred_at, payload)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		id,
		string(event.Type),
		string(event.Category),
		event.RunID,
		event.Timestamp,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

// ListByRun returns the events of one run ordered by time.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM run_events WHERE run_id = $1 ORDER BY occurred_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		var event audit.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("decode run event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
