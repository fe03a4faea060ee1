// internal/search/engine.go
package search

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"search-relevance-engine/internal/common/config"
	"search-relevance-engine/internal/common/errors"
	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/common/metrics"
	"search-relevance-engine/internal/common/observability"
	"search-relevance-engine/internal/common/validation"
	"search-relevance-engine/internal/models"
	"search-relevance-engine/internal/search/cache"
	"search-relevance-engine/internal/search/fuzzy"
	"search-relevance-engine/internal/search/history"
	"search-relevance-engine/internal/search/rank"
	"search-relevance-engine/internal/search/scoring"
)

// CandidateFetcher is the storage collaborator. It returns a coarse,
// unranked candidate batch for a query; all refinement and ordering
// happens in the engine.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context, query models.Query) (models.CandidateBatch, error)
}

// Request is one search invocation.
type Request struct {
	Query  models.Query `json:"query"`
	UserID string       `json:"userId,omitempty"`
}

// Response is the engine's answer. Suggestion responses carry trending
// terms instead of ranked buckets and are not errors.
type Response struct {
	Query       models.Query       `json:"query"`
	Results     models.ResultBatch `json:"results"`
	Suggestion  bool               `json:"suggestion,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	FromCache   bool               `json:"fromCache,omitempty"`
}

// Engine is the search facade. It owns the cache, the scoring weights and
// the recording pipeline; storage access goes through the fetcher.
type Engine struct {
	fetcher CandidateFetcher
	cache   *cache.Cache
	agg     *history.Aggregator
	weights scoring.Weights
	logger  logger.Logger
	obs     *observability.Observability

	minQueryLength  int
	maxResults      int
	suggestionLimit int
	debounce        time.Duration

	now func() time.Time
}

func NewEngine(
	fetcher CandidateFetcher,
	resultCache *cache.Cache,
	agg *history.Aggregator,
	cfg config.SearchConfig,
	override *scoring.Override,
	log logger.Logger,
	obs *observability.Observability,
) *Engine {
	weights := scoring.DefaultWeights().Merge(override)

	return &Engine{
		fetcher:         fetcher,
		cache:           resultCache,
		agg:             agg,
		weights:         weights,
		logger:          log.WithFields(map[string]interface{}{"component": "engine"}),
		obs:             obs,
		minQueryLength:  cfg.MinQueryLength,
		maxResults:      cfg.MaxResults,
		suggestionLimit: cfg.SuggestionLimit,
		debounce:        cfg.DebounceWindow(),
		now:             time.Now,
	}
}

// Search runs one query through the cache and scoring pipeline. A query
// below the minimum length yields a suggestion response, not an error.
// Candidate fetch failures and compute timeouts surface as typed
// StandardErrors, distinguishable from a successful empty result.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	started := e.now()
	normalized := req.Query.Normalized()

	if len(normalized) < e.minQueryLength {
		return e.suggest(ctx, req)
	}

	batch, fromCache, err := e.cache.Get(ctx, req.Query.CacheKey(), func(cctx context.Context) (*models.ResultBatch, error) {
		return e.compute(cctx, req.Query)
	})
	if err != nil {
		e.observe(ctx, started, "error")
		e.agg.RecordError(req.UserID, normalized, err)

		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewSearchTimeoutError(normalized)
		}
		var se *errors.StandardError
		if stderrors.As(err, &se) {
			return nil, se
		}
		return nil, errors.NewSearchQueryFailedError(err)
	}

	outcome := "success"
	if fromCache {
		outcome = "cache_hit"
	}
	e.observe(ctx, started, outcome)
	e.agg.RecordSearch(req.UserID, req.Query, batch.Total(), e.now().UTC())

	return &Response{
		Query:     req.Query,
		Results:   *batch,
		FromCache: fromCache,
	}, nil
}

// Rerank re-scores an already-ranked mixed batch, for callers that merge
// results from several sources before display.
func (e *Engine) Rerank(results []models.ScoredResult, query string) []models.ScoredResult {
	return rank.Rerank(results, query, e.weights, e.now())
}

// Suggestions returns trending terms for an empty or too-short query box.
func (e *Engine) Suggestions(ctx context.Context, category string) ([]models.TrendingTerm, error) {
	return e.agg.Trending(ctx, e.suggestionLimit, category)
}

// History returns the user's recent distinct queries, newest first.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]string, error) {
	return e.agg.History(ctx, userID, limit)
}

// ClearHistory removes every history record for the user.
func (e *Engine) ClearHistory(ctx context.Context, userID string) error {
	return e.agg.ClearHistory(ctx, userID)
}

// TrackClick validates and records a click payload from the UI. The
// payload must match the click event schema; recording itself is
// fire-and-forget.
func (e *Engine) TrackClick(payload map[string]interface{}) error {
	if err := validation.ValidateClickEvent(payload); err != nil {
		return errors.NewInvalidClickEventError(err.Error())
	}

	userID, _ := payload["userId"].(string)
	query, _ := payload["query"].(string)
	resultID, _ := payload["resultId"].(string)
	kind, _ := payload["resultKind"].(string)
	position := intField(payload["position"])

	e.agg.RecordClick(userID, query, models.ClickedResult{
		ResultID: resultID,
		Kind:     models.ResultKind(kind),
		Position: position,
	})
	return nil
}

// Preload warms the cache for a known set of common queries.
func (e *Engine) Preload(ctx context.Context, queries []string) {
	keys := make([]string, 0, len(queries))
	byKey := make(map[string]models.Query, len(queries))
	for _, text := range queries {
		q := models.Query{Text: text}
		key := q.CacheKey()
		keys = append(keys, key)
		byKey[key] = q
	}

	e.cache.Preload(ctx, keys, func(cctx context.Context, key string) (*models.ResultBatch, error) {
		return e.compute(cctx, byKey[key])
	})
}

// Wait blocks until in-flight recordings drain. Used by shutdown.
func (e *Engine) Wait() {
	e.agg.Wait()
}

func (e *Engine) suggest(ctx context.Context, req Request) (*Response, error) {
	metrics.SearchRequests.WithLabelValues("suggestion").Inc()

	terms, err := e.agg.Trending(ctx, e.suggestionLimit, req.Query.Category)
	if err != nil {
		// Suggestions are best-effort; an empty box beats a failed search.
		e.logger.Warn("trending lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
		terms = nil
	}

	suggestions := make([]string, 0, len(terms))
	for _, t := range terms {
		suggestions = append(suggestions, t.Term)
	}

	return &Response{
		Query:       req.Query,
		Suggestion:  true,
		Suggestions: suggestions,
	}, nil
}

// compute fetches one candidate batch and scores every category in
// parallel. A failure inside one category degrades that bucket to empty;
// the other buckets still return.
func (e *Engine) compute(ctx context.Context, query models.Query) (*models.ResultBatch, error) {
	candidates, err := e.fetcher.FetchCandidates(ctx, query)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var se *errors.StandardError
		if stderrors.As(err, &se) {
			return nil, se
		}
		return nil, errors.NewCandidateFetchFailedError(err)
	}

	normalized := query.Normalized()
	now := e.now()
	batch := &models.ResultBatch{}

	g, _ := errgroup.WithContext(ctx)
	g.Go(e.bucket("items", func() {
		batch.Items = e.scoreItems(candidates.Items, normalized, now)
	}))
	g.Go(e.bucket("users", func() {
		batch.Users = e.scoreUsers(candidates.Users, normalized)
	}))
	g.Go(e.bucket("tags", func() {
		batch.Tags = e.scoreTags(candidates.Tags, normalized)
	}))
	g.Go(e.bucket("actions", func() {
		batch.Actions = e.scoreActions(candidates.Actions, normalized)
	}))
	g.Go(e.bucket("reviews", func() {
		batch.Reviews = e.scoreReviews(candidates.Reviews, normalized)
	}))
	_ = g.Wait()

	return batch, nil
}

// bucket wraps one category's scoring pass. Each goroutine owns exactly
// one batch field, so no locking is needed; a panic empties that bucket
// only.
func (e *Engine) bucket(name string, score func()) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("bucket scoring failed", map[string]interface{}{
					"bucket": name,
					"panic":  r,
				})
			}
		}()
		score()
		return nil
	}
}

func (e *Engine) scoreItems(items []models.ItemCandidate, query string, now time.Time) []models.ScoredResult {
	results := make([]models.ScoredResult, 0, len(items))
	for _, item := range items {
		results = append(results, models.ScoredResult{
			Kind:        models.KindItem,
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			Tags:        item.Tags,
			Rating:      item.Rating,
			RatingCount: item.RatingCount,
			CreatedAt:   item.CreatedAt,
			Score:       scoring.ScoreItem(item, query, e.weights, now),
		})
	}
	return e.order(results)
}

func (e *Engine) scoreUsers(users []models.UserCandidate, query string) []models.ScoredResult {
	results := make([]models.ScoredResult, 0, len(users))
	for _, user := range users {
		results = append(results, models.ScoredResult{
			Kind:      models.KindUser,
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			Bio:       user.Bio,
			ItemCount: user.ItemCount,
			Score:     scoring.ScoreUser(user, query, e.weights),
		})
	}
	return e.order(results)
}

func (e *Engine) scoreTags(tags []models.TagCandidate, query string) []models.ScoredResult {
	results := make([]models.ScoredResult, 0, len(tags))
	for _, tag := range tags {
		results = append(results, models.ScoredResult{
			Kind:       models.KindTag,
			ID:         tag.ID,
			Title:      tag.Name,
			UsageCount: tag.UsageCount,
			Score:      scoring.ScoreTag(tag, query, e.weights),
		})
	}
	return e.order(results)
}

func (e *Engine) scoreActions(actions []models.ActionCandidate, query string) []models.ScoredResult {
	results := make([]models.ScoredResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, models.ScoredResult{
			Kind:  models.KindAction,
			ID:    action.ID,
			Title: action.Label,
			Score: fuzzy.Score(action.Label, query) / fuzzy.MaxScore * e.weights.FuzzyMatch,
		})
	}
	return e.order(results)
}

func (e *Engine) scoreReviews(reviews []models.ReviewCandidate, query string) []models.ScoredResult {
	results := make([]models.ScoredResult, 0, len(reviews))
	for _, review := range reviews {
		results = append(results, models.ScoredResult{
			Kind:   models.KindReview,
			ID:     review.ID,
			Title:  review.Excerpt,
			Rating: review.Rating,
			Score:  fuzzy.Score(review.Excerpt, query) / fuzzy.MaxScore * e.weights.FuzzyMatch,
		})
	}
	return e.order(results)
}

// order sorts one bucket by score descending and applies the per-bucket
// result cap. The sort is stable, so equal scores keep candidate order.
func (e *Engine) order(results []models.ScoredResult) []models.ScoredResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if e.maxResults > 0 && len(results) > e.maxResults {
		results = results[:e.maxResults]
	}
	return results
}

func (e *Engine) observe(ctx context.Context, started time.Time, outcome string) {
	elapsed := e.now().Sub(started)
	metrics.SearchRequests.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.Observe(elapsed.Seconds())
	if e.obs != nil {
		e.obs.RecordSearchProcessed(ctx, outcome)
		e.obs.RecordSearchDuration(ctx, elapsed, outcome)
	}
}

// intField reads a numeric JSON field that may arrive as float64 or int.
func intField(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
