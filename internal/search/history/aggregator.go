// internal/search/history/aggregator.go
package history

import (
	"context"
	"sync"
	"time"

	"search-relevance-engine/internal/common/errors"
	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/common/metrics"
	"search-relevance-engine/internal/models"
)

// Aggregator records executed queries and clicks and answers trending
// lookups. All writes are fire-and-forget relative to the ranking path:
// they run on their own goroutine with a detached context, and failures
// are logged and metered, never propagated.
type Aggregator struct {
	history *HistoryStore
	trends  *TrendStore
	events  *MetricStore
	logger  logger.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func NewAggregator(history *HistoryStore, trends *TrendStore, events *MetricStore, log logger.Logger) *Aggregator {
	return &Aggregator{
		history: history,
		trends:  trends,
		events:  events,
		logger:  log.WithFields(map[string]interface{}{"component": "aggregator"}),
		timeout: 5 * time.Second,
	}
}

// RecordSearch appends a history record, bumps the trend counter for the
// normalized term, and emits a search metric event. Returns immediately.
func (a *Aggregator) RecordSearch(userID string, query models.Query, resultCount int, ts time.Time) {
	term := query.Normalized()
	if term == "" {
		return
	}

	a.async(func(ctx context.Context) {
		if err := a.history.InsertSearch(ctx, models.SearchHistoryRecord{
			UserID:      userID,
			Query:       term,
			Timestamp:   ts,
			ResultCount: resultCount,
		}); err != nil {
			a.recordFailure("history", errors.NewHistoryWriteFailedError(err))
		}

		if err := a.trends.Record(ctx, term, query.Category, ts); err != nil {
			a.recordFailure("trends", errors.NewTrendUpdateFailedError(err))
		}

		count := resultCount
		if err := a.events.Insert(ctx, models.SearchMetricEvent{
			Type:        models.MetricSearch,
			Query:       term,
			UserID:      userID,
			ResultCount: &count,
			Timestamp:   ts,
		}); err != nil {
			a.recordFailure("metrics", errors.NewMetricWriteFailedError(err))
		}
	})
}

// RecordClick appends the click to the most recent matching history
// record; when none exists, only the standalone click metric is emitted.
// Returns immediately.
func (a *Aggregator) RecordClick(userID, query string, click models.ClickedResult) {
	a.async(func(ctx context.Context) {
		matched, err := a.history.AppendClick(ctx, userID, query, click)
		if err != nil {
			a.recordFailure("history", errors.NewHistoryWriteFailedError(err))
		} else if !matched {
			a.logger.Debug("click without matching history record", map[string]interface{}{
				"query": query,
			})
		}

		position := click.Position
		if err := a.events.Insert(ctx, models.SearchMetricEvent{
			Type:       models.MetricClick,
			Query:      query,
			UserID:     userID,
			ResultID:   click.ResultID,
			ResultKind: click.Kind,
			Position:   &position,
			Timestamp:  time.Now().UTC(),
		}); err != nil {
			a.recordFailure("metrics", errors.NewMetricWriteFailedError(err))
		}
	})
}

// RecordError emits an error metric event. Returns immediately.
func (a *Aggregator) RecordError(userID, query string, searchErr error) {
	msg := searchErr.Error()
	a.async(func(ctx context.Context) {
		if err := a.events.Insert(ctx, models.SearchMetricEvent{
			Type:      models.MetricError,
			Query:     query,
			UserID:    userID,
			Error:     msg,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			a.recordFailure("metrics", errors.NewMetricWriteFailedError(err))
		}
	})
}

// Trending returns the top trending terms, optionally category-filtered.
func (a *Aggregator) Trending(ctx context.Context, limit int, category string) ([]models.TrendingTerm, error) {
	return a.trends.Top(ctx, limit, category)
}

// History returns the user's recent query texts.
func (a *Aggregator) History(ctx context.Context, userID string, limit int) ([]string, error) {
	return a.history.GetHistory(ctx, userID, limit)
}

// ClearHistory removes every history record for the user.
func (a *Aggregator) ClearHistory(ctx context.Context, userID string) error {
	return a.history.ClearHistory(ctx, userID)
}

// Wait blocks until every in-flight recording finishes. Used by shutdown
// and tests.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

func (a *Aggregator) async(fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (a *Aggregator) recordFailure(store string, err *errors.StandardError) {
	metrics.RecordingFailures.WithLabelValues(store).Inc()
	a.logger.Warn("recording failed", map[string]interface{}{
		"store": store,
		"code":  string(err.Code),
		"error": err.Error(),
	})
}
