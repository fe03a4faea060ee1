// internal/search/history/trending.go
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"search-relevance-engine/internal/common/metrics"
	"search-relevance-engine/internal/models"
)

const (
	trendTermsKey      = "trending:terms"
	trendLastKey       = "trending:last"
	trendCategoriesKey = "trending:categories"
	trendCategoryKey   = "trending:cat:"

	// How many extra candidates to pull past the requested limit so the
	// recency bias has room to reorder near-equal counts.
	trendOverfetch = 3
)

// TrendStore maintains per-term counters and last-used timestamps in
// Redis. Increments rely on ZIncrBy atomicity; concurrent writers never
// lose counts, they only race on last-updated, which is acceptable for an
// eventually consistent recency signal.
type TrendStore struct {
	rdb *redis.Client
}

func NewTrendStore(rdb *redis.Client) *TrendStore {
	return &TrendStore{rdb: rdb}
}

// Record increments the counter for a normalized term, creating the term
// on first occurrence, and stamps its last-updated time.
func (s *TrendStore) Record(ctx context.Context, term, category string, ts time.Time) error {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, trendTermsKey, 1, term)
		pipe.HSet(ctx, trendLastKey, term, ts.UTC().Format(time.RFC3339Nano))
		if category != "" {
			pipe.ZIncrBy(ctx, trendCategoryKey+category, 1, term)
			pipe.HSet(ctx, trendCategoriesKey, term, category)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record trend %q: %w", term, err)
	}

	metrics.TrendingUpdates.Inc()
	return nil
}

// Top returns the top-limit trending terms ordered by count descending,
// optionally restricted to one category. Terms with equal counts are
// ordered most recently used first; raw count ordering is otherwise
// untouched.
func (s *TrendStore) Top(ctx context.Context, limit int, category string) ([]models.TrendingTerm, error) {
	if limit <= 0 {
		limit = 10
	}

	key := trendTermsKey
	if category != "" {
		key = trendCategoryKey + category
	}

	fetched, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit*trendOverfetch-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("top trends: %w", err)
	}
	if len(fetched) == 0 {
		return nil, nil
	}

	terms := make([]models.TrendingTerm, 0, len(fetched))
	fields := make([]string, 0, len(fetched))
	for _, z := range fetched {
		fields = append(fields, z.Member.(string))
	}

	lastRaw, err := s.rdb.HMGet(ctx, trendLastKey, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("trend timestamps: %w", err)
	}
	catRaw, err := s.rdb.HMGet(ctx, trendCategoriesKey, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("trend categories: %w", err)
	}

	for i, z := range fetched {
		term := models.TrendingTerm{
			Term:  fields[i],
			Count: int64(z.Score),
		}
		if raw, ok := lastRaw[i].(string); ok {
			if ts, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
				term.LastUpdated = ts
			}
		}
		if raw, ok := catRaw[i].(string); ok {
			term.Category = raw
		}
		terms = append(terms, term)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].LastUpdated.After(terms[j].LastUpdated)
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms, nil
}
