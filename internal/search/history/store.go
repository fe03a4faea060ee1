// internal/search/history/store.go
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/models"
)

// HistoryStore persists per-user search history records in PostgreSQL.
// Records are append-only; the only mutation is appending a click to the
// most recent matching record.
type HistoryStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewHistoryStore(db *sql.DB, log logger.Logger) *HistoryStore {
	return &HistoryStore{db: db, logger: log}
}

// Migrate creates the history table and its secondary indexes.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS search_history (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			result_count INT NOT NULL DEFAULT 0,
			clicked_results JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_history_user_ts ON search_history (user_id, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_search_history_query ON search_history (query)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history migrate: %w", err)
		}
	}
	return nil
}

// InsertSearch appends one history record. A missing ID is generated.
func (s *HistoryStore) InsertSearch(ctx context.Context, rec models.SearchHistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	clicked, err := json.Marshal(rec.ClickedResults)
	if err != nil {
		return fmt.Errorf("marshal clicked results: %w", err)
	}
	if rec.ClickedResults == nil {
		clicked = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, query, ts, result_count, clicked_results)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.Query, rec.Timestamp, rec.ResultCount, clicked,
	)
	if err != nil {
		return fmt.Errorf("insert search history: %w", err)
	}
	return nil
}

// AppendClick appends a click to the most recent history record matching
// user and query. Returns false when no matching record exists.
func (s *HistoryStore) AppendClick(ctx context.Context, userID, query string, click models.ClickedResult) (bool, error) {
	payload, err := json.Marshal([]models.ClickedResult{click})
	if err != nil {
		return false, fmt.Errorf("marshal click: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE search_history
		 SET clicked_results = clicked_results || $1::jsonb
		 WHERE id = (
			SELECT id FROM search_history
			WHERE user_id = $2 AND query = $3
			ORDER BY ts DESC LIMIT 1
		 )`,
		payload, userID, query,
	)
	if err != nil {
		return false, fmt.Errorf("append click: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append click rows: %w", err)
	}
	return affected > 0, nil
}

// GetHistory returns the user's most recent distinct query texts, newest
// first.
func (s *HistoryStore) GetHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT query FROM (
			SELECT query, MAX(ts) AS latest FROM search_history
			WHERE user_id = $1
			GROUP BY query
		 ) h ORDER BY latest DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// ClearHistory removes every history record for the user.
func (s *HistoryStore) ClearHistory(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
