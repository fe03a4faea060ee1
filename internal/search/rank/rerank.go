// internal/search/rank/rerank.go
package rank

import (
	"sort"
	"time"

	"search-relevance-engine/internal/models"
	"search-relevance-engine/internal/search/fuzzy"
	"search-relevance-engine/internal/search/scoring"
)

// Rerank recomputes scores for a mixed batch of already-scored results and
// returns them ordered by score descending. Results with a recognized kind
// are re-scored through the matching entity scorer using whatever fields
// their projection carries; unrecognized kinds keep their existing score.
//
// The sort is stable: equal scores keep the relative order they had in the
// input. There is no secondary tie-break key.
func Rerank(results []models.ScoredResult, query string, w scoring.Weights, now time.Time) []models.ScoredResult {
	out := make([]models.ScoredResult, len(results))
	copy(out, results)

	for i := range out {
		out[i].Score = scoreResult(out[i], query, w, now)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

func scoreResult(r models.ScoredResult, query string, w scoring.Weights, now time.Time) float64 {
	switch r.Kind {
	case models.KindItem:
		return scoring.ScoreItem(itemProjection(r), query, w, now)
	case models.KindUser:
		return scoring.ScoreUser(userProjection(r), query, w)
	case models.KindTag:
		return scoring.ScoreTag(tagProjection(r), query, w)
	case models.KindAction, models.KindReview:
		// Actions and reviews carry only a display label; score them by
		// the generic fuzzy-match weight.
		return fuzzy.Score(r.Title, query) / fuzzy.MaxScore * w.FuzzyMatch
	default:
		return r.Score
	}
}

// itemProjection maps a heterogeneous result onto the item scorer's input.
// Fields the result does not carry stay at their zero-contribution default.
func itemProjection(r models.ScoredResult) models.ItemCandidate {
	return models.ItemCandidate{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		Rating:      r.Rating,
		RatingCount: r.RatingCount,
		CreatedAt:   r.CreatedAt,
	}
}

func userProjection(r models.ScoredResult) models.UserCandidate {
	username := r.Username
	if username == "" {
		username = r.Title
	}
	return models.UserCandidate{
		ID:        r.ID,
		Username:  username,
		FullName:  r.FullName,
		Bio:       r.Bio,
		ItemCount: r.ItemCount,
	}
}

func tagProjection(r models.ScoredResult) models.TagCandidate {
	return models.TagCandidate{
		ID:         r.ID,
		Name:       r.Title,
		UsageCount: r.UsageCount,
	}
}
