// internal/search/scoring/scorers.go
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"search-relevance-engine/internal/models"
	"search-relevance-engine/internal/search/fuzzy"
)

const (
	// Per-occurrence bonus for each literal repeat of the query beyond
	// the first. Title repeats weigh more than description repeats.
	titleRepeatBonus       = 5.0
	descriptionRepeatBonus = 2.0

	hoursPerDay    = 24.0
	recencyHorizon = 365.0
)

// ScoreItem scores a content item against a query. All signals are
// additive; missing optional fields contribute zero. The result is always
// finite and non-negative.
func ScoreItem(item models.ItemCandidate, query string, w Weights, now time.Time) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	score := 0.0

	score += scoreTextField(item.Title, q, w.Title, titleRepeatBonus)
	score += scoreTextField(item.Description, q, w.Description, descriptionRepeatBonus)

	if len(item.Tags) > 0 {
		best := 0.0
		for _, tag := range item.Tags {
			if s := fuzzy.Score(tag, q); s > best {
				best = s
			}
		}
		score += best / fuzzy.MaxScore * w.Tag
	}

	if item.Rating != nil && item.RatingCount != nil {
		confidence := math.Min(float64(*item.RatingCount)/10.0, 1.0)
		score += (*item.Rating / 5.0) * confidence * w.Popularity
	}

	if item.CreatedAt != nil {
		ageDays := now.Sub(*item.CreatedAt).Hours() / hoursPerDay
		score += math.Max(0, 1.0-ageDays/recencyHorizon) * w.Recency
	}

	return sanitize(score)
}

// ScoreUser scores a user profile against a query. The username signal
// dominates, with the full exact-match bonus on case-insensitive equality.
func ScoreUser(user models.UserCandidate, query string, w Weights) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	score := 0.0

	score += fuzzy.Score(user.Username, q) / fuzzy.MaxScore * w.Username
	if q != "" && strings.ToLower(strings.TrimSpace(user.Username)) == q {
		score += w.ExactMatch
	}

	score += fuzzy.Score(user.FullName, q) / fuzzy.MaxScore * w.Title
	// Bio is a weak signal: half the description weight.
	score += fuzzy.Score(user.Bio, q) / fuzzy.MaxScore * w.Description * 0.5

	if user.ItemCount != nil {
		score += math.Min(float64(*user.ItemCount)/20.0, 1.0) * w.Popularity
	}

	return sanitize(score)
}

// ScoreTag scores a tag against a query with the same exact-match rule as
// users and a usage-count popularity term.
func ScoreTag(tag models.TagCandidate, query string, w Weights) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	score := 0.0

	score += fuzzy.Score(tag.Name, q) / fuzzy.MaxScore * w.Tag
	if q != "" && strings.ToLower(strings.TrimSpace(tag.Name)) == q {
		score += w.ExactMatch
	}

	if tag.UsageCount != nil {
		score += math.Min(float64(*tag.UsageCount)/100.0, 1.0) * w.Popularity
	}

	return sanitize(score)
}

// scoreTextField combines the fuzzy signal for one text field with the
// repeat-occurrence bonus. Occurrences beyond the first are collapsed out
// of the field before fuzzy scoring so accumulating repeats never dilutes
// the containment band; each extra occurrence then adds perOccurrence, so
// the combined signal strictly grows with occurrence count.
func scoreTextField(field, query string, weight, perOccurrence float64) float64 {
	occurrences, collapsed := literalOccurrences(field, query)
	score := fuzzy.Score(collapsed, query) / fuzzy.MaxScore * weight
	if occurrences > 1 {
		score += float64(occurrences-1) * perOccurrence
	}
	return score
}

// literalOccurrences counts case-insensitive literal occurrences of the
// regex-escaped query in field. When there is more than one, it also
// returns field with every occurrence after the first removed and
// whitespace renormalized, so "cat tower cat" fuzzy-scores as "cat tower".
func literalOccurrences(field, query string) (int, string) {
	if field == "" || query == "" {
		return 0, field
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return 0, field
	}
	locs := re.FindAllStringIndex(field, -1)
	if len(locs) <= 1 {
		return len(locs), field
	}

	var b strings.Builder
	end := 0
	for _, loc := range locs[1:] {
		b.WriteString(field[end:loc[0]])
		end = loc[1]
	}
	b.WriteString(field[end:])

	return len(locs), strings.Join(strings.Fields(b.String()), " ")
}

// sanitize clamps a score to a finite, non-negative value. Scorers never
// surface NaN or infinities.
func sanitize(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return math.Max(score, 0)
}
