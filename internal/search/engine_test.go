package search

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"search-relevance-engine/internal/common/config"
	"search-relevance-engine/internal/common/errors"
	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/models"
	"search-relevance-engine/internal/search/cache"
	"search-relevance-engine/internal/search/history"
)

type stubFetcher struct {
	batch models.CandidateBatch
	err   error
	calls int32
}

func (f *stubFetcher) FetchCandidates(ctx context.Context, query models.Query) (models.CandidateBatch, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return models.CandidateBatch{}, f.err
	}
	return f.batch, nil
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DebounceMs:       200,
		MinQueryLength:   2,
		CacheTTLMs:       60000,
		ComputeTimeoutMs: 3000,
		MaxResults:       50,
		SuggestionLimit:  5,
	}
}

func newTestEngine(t *testing.T, fetcher CandidateFetcher) (*Engine, *history.Aggregator) {
	log := logger.NewZapAdapter(zaptest.NewLogger(t))
	cfg := testSearchConfig()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })

	agg := history.NewAggregator(
		history.NewHistoryStore(db, log),
		history.NewTrendStore(rdb),
		history.NewMetricStore(db),
		log,
	)
	resultCache := cache.New(cfg.CacheTTL(), cfg.ComputeTimeout(), log)

	return NewEngine(fetcher, resultCache, agg, cfg, nil, log, nil), agg
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestEngine_Search_RanksCatTowerAboveDogHouse(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{
			{ID: "dog-1", Title: "Dog House", Description: "A sturdy house for large dogs"},
			{ID: "cat-1", Title: "Cat Tower", Description: "A tall tower for cats to climb"},
		},
	}}
	engine, _ := newTestEngine(t, fetcher)

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.NoError(t, err)
	require.Len(t, resp.Results.Items, 2)

	assert.Equal(t, "cat-1", resp.Results.Items[0].ID)
	assert.Equal(t, "dog-1", resp.Results.Items[1].ID)
	assert.Greater(t, resp.Results.Items[0].Score, resp.Results.Items[1].Score)
}

func TestEngine_Search_ExactUsernameBeatsNearMiss(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Users: []models.UserCandidate{
			{ID: "u-2", Username: "alicia", ItemCount: intPtr(100)},
			{ID: "u-1", Username: "alice"},
		},
	}}
	engine, _ := newTestEngine(t, fetcher)

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "alice"}})
	require.NoError(t, err)
	require.Len(t, resp.Results.Users, 2)

	assert.Equal(t, "u-1", resp.Results.Users[0].ID)
	assert.Equal(t, "u-2", resp.Results.Users[1].ID)
}

func TestEngine_Search_EmptyBatchIsNotAnError(t *testing.T) {
	fetcher := &stubFetcher{}
	engine, _ := newTestEngine(t, fetcher)

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "nothing matches"}})
	require.NoError(t, err)
	assert.False(t, resp.Suggestion)
	assert.Equal(t, 0, resp.Results.Total())
}

func TestEngine_Search_ShortQueryYieldsSuggestions(t *testing.T) {
	fetcher := &stubFetcher{}
	engine, agg := newTestEngine(t, fetcher)

	// Seed trends through the recording path.
	agg.RecordSearch("user-1", models.Query{Text: "cat tower"}, 3, time.Now().UTC())
	agg.RecordSearch("user-1", models.Query{Text: "cat tower"}, 3, time.Now().UTC())
	agg.RecordSearch("user-2", models.Query{Text: "dog house"}, 1, time.Now().UTC())
	agg.Wait()

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "c"}})
	require.NoError(t, err)

	assert.True(t, resp.Suggestion)
	assert.Equal(t, 0, resp.Results.Total())
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "cat tower", resp.Suggestions[0])
	assert.Equal(t, int32(0), atomic.LoadInt32(&fetcher.calls))
}

func TestEngine_Search_FetchFailureIsTyped(t *testing.T) {
	fetcher := &stubFetcher{err: assert.AnError}
	engine, _ := newTestEngine(t, fetcher)

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCandidateFetchFailed))
}

func TestEngine_Search_SecondIdenticalQueryHitsCache(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{{ID: "cat-1", Title: "Cat Tower"}},
	}}
	engine, _ := newTestEngine(t, fetcher)

	first, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "  CAT "}})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestEngine_Search_CategoryFilterGetsOwnCacheEntry(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{{ID: "cat-1", Title: "Cat Tower"}},
	}}
	engine, _ := newTestEngine(t, fetcher)

	_, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.NoError(t, err)
	_, err = engine.Search(context.Background(), Request{Query: models.Query{Text: "cat", Category: "furniture"}})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestEngine_Search_BucketsAreIndependentlyOrdered(t *testing.T) {
	now := time.Now().UTC()
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{
			{ID: "i-old", Title: "cat bed", CreatedAt: timePtr(now.AddDate(-2, 0, 0))},
			{ID: "i-new", Title: "cat bed", CreatedAt: timePtr(now.Add(-24 * time.Hour))},
		},
		Tags: []models.TagCandidate{
			{ID: "t-2", Name: "catalog", UsageCount: intPtr(500)},
			{ID: "t-1", Name: "cat", UsageCount: intPtr(10)},
		},
		Reviews: []models.ReviewCandidate{
			{ID: "r-1", Excerpt: "best cat product ever", Rating: floatPtr(5)},
		},
	}}
	engine, _ := newTestEngine(t, fetcher)

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.NoError(t, err)

	require.Len(t, resp.Results.Items, 2)
	assert.Equal(t, "i-new", resp.Results.Items[0].ID)

	require.Len(t, resp.Results.Tags, 2)
	assert.Equal(t, "t-1", resp.Results.Tags[0].ID)

	require.Len(t, resp.Results.Reviews, 1)
	assert.Greater(t, resp.Results.Reviews[0].Score, 0.0)
}

func TestEngine_Search_MaxResultsCapsEachBucket(t *testing.T) {
	items := make([]models.ItemCandidate, 10)
	for i := range items {
		items[i] = models.ItemCandidate{ID: "item", Title: "cat"}
	}
	fetcher := &stubFetcher{batch: models.CandidateBatch{Items: items}}

	engine, _ := newTestEngine(t, fetcher)
	engine.maxResults = 3

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.NoError(t, err)
	assert.Len(t, resp.Results.Items, 3)
}

func TestEngine_Rerank_MixedKinds(t *testing.T) {
	engine, _ := newTestEngine(t, &stubFetcher{})

	input := []models.ScoredResult{
		{Kind: models.KindAction, ID: "a-1", Title: "catalog export"},
		{Kind: models.KindUser, ID: "u-1", Username: "alice"},
		{Kind: models.KindItem, ID: "i-1", Title: "Cat Tower"},
	}

	out := engine.Rerank(input, "alice")
	require.Len(t, out, 3)
	assert.Equal(t, "u-1", out[0].ID)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestEngine_TrackClick(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]interface{}
		wantCode errors.ErrorCode
	}{
		{
			name: "valid click",
			payload: map[string]interface{}{
				"query":      "cat",
				"resultId":   "item-1",
				"resultKind": "item",
				"position":   float64(0),
				"userId":     "user-1",
			},
		},
		{
			name: "missing result id",
			payload: map[string]interface{}{
				"query":      "cat",
				"resultKind": "item",
				"position":   float64(0),
			},
			wantCode: errors.ErrCodeInvalidClickEvent,
		},
		{
			name: "unknown kind",
			payload: map[string]interface{}{
				"query":      "cat",
				"resultId":   "item-1",
				"resultKind": "widget",
				"position":   float64(0),
			},
			wantCode: errors.ErrCodeInvalidClickEvent,
		},
		{
			name: "negative position",
			payload: map[string]interface{}{
				"query":      "cat",
				"resultId":   "item-1",
				"resultKind": "item",
				"position":   float64(-1),
			},
			wantCode: errors.ErrCodeInvalidClickEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, agg := newTestEngine(t, &stubFetcher{})

			err := engine.TrackClick(tt.payload)
			agg.Wait()

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngine_Session_DebouncesBurstToFinalQuery(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{{ID: "cat-1", Title: "Cat Tower"}},
	}}
	engine, _ := newTestEngine(t, fetcher)
	engine.debounce = 30 * time.Millisecond

	session := engine.NewSession("user-1")
	defer session.Close()

	delivered := make(chan *Response, 3)
	submit := func(text string) {
		session.Submit(models.Query{Text: text}, func(resp *Response, err error) {
			assert.NoError(t, err)
			delivered <- resp
		})
	}

	submit("ca")
	submit("cat")
	submit("cat tower")

	select {
	case resp := <-delivered:
		assert.Equal(t, "cat tower", resp.Query.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced search was never delivered")
	}

	// The superseded edits never reach the fetcher or the caller.
	time.Sleep(2 * engine.debounce)
	assert.Len(t, delivered, 0)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestEngine_Session_InstantSearchSubmitsImmediately(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{{ID: "cat-1", Title: "Cat Tower"}},
	}}
	engine, _ := newTestEngine(t, fetcher)
	engine.debounce = 0

	session := engine.NewSession("user-1")
	defer session.Close()

	delivered := make(chan *Response, 1)
	session.Submit(models.Query{Text: "cat"}, func(resp *Response, err error) {
		assert.NoError(t, err)
		delivered <- resp
	})

	select {
	case resp := <-delivered:
		assert.False(t, resp.Suggestion)
		require.Len(t, resp.Results.Items, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("instant search was never delivered")
	}
}

func TestEngine_Preload_WarmsCache(t *testing.T) {
	fetcher := &stubFetcher{batch: models.CandidateBatch{
		Items: []models.ItemCandidate{{ID: "cat-1", Title: "Cat Tower"}},
	}}
	engine, _ := newTestEngine(t, fetcher)

	engine.Preload(context.Background(), []string{"cat", "dog"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))

	resp, err := engine.Search(context.Background(), Request{Query: models.Query{Text: "cat"}})
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}
