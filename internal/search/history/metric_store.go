// internal/search/history/metric_store.go
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"search-relevance-engine/internal/models"
)

// MetricStore appends search metric events to PostgreSQL. Events are
// write-once and never read back by the ranking path.
type MetricStore struct {
	db *sql.DB
}

func NewMetricStore(db *sql.DB) *MetricStore {
	return &MetricStore{db: db}
}

// Migrate creates the append-only metric event table.
func (s *MetricStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS search_metric_events (
			id UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			query TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			result_count INT,
			result_id TEXT,
			result_kind TEXT,
			position INT,
			latency_ms BIGINT,
			error TEXT,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_events_query_ts ON search_metric_events (query, ts DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("metrics migrate: %w", err)
		}
	}
	return nil
}

// Insert appends one metric event. A missing ID or timestamp is filled in.
func (s *MetricStore) Insert(ctx context.Context, ev models.SearchMetricEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_metric_events
		 (id, event_type, query, user_id, result_count, result_id, result_kind, position, latency_ms, error, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, string(ev.Type), ev.Query, ev.UserID,
		nullableInt(ev.ResultCount), ev.ResultID, string(ev.ResultKind),
		nullableInt(ev.Position), nullableInt64(ev.LatencyMs), ev.Error, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert metric event: %w", err)
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
