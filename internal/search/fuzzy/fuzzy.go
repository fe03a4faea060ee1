// internal/search/fuzzy/fuzzy.go
package fuzzy

import "strings"

const (
	// MaxScore is the score of an exact (case-insensitive) match.
	MaxScore = 100.0

	containsBase   = 70.0
	containsSpread = 30.0
	subseqSpread   = 60.0
)

// Score compares candidate against query and returns a similarity score
// in [0,100]. Comparison is case-insensitive and whitespace-trimmed.
//
// An empty or whitespace-only query scores 0 against every candidate; the
// entity scorers share this convention so an empty query carries no
// discriminating signal anywhere. An empty candidate also scores 0.
//
// Exact equality scores 100. Substring containment scores in [70,100],
// growing with how much of the candidate the query covers. Anything else
// scores by the longest in-order character overlap, capped at 60, so a
// better partial match never scores below a worse one.
func Score(candidate, query string) float64 {
	c := strings.ToLower(strings.TrimSpace(candidate))
	q := strings.ToLower(strings.TrimSpace(query))

	if c == "" || q == "" {
		return 0
	}
	if c == q {
		return MaxScore
	}
	if strings.Contains(c, q) {
		return containsBase + containsSpread*float64(len(q))/float64(len(c))
	}

	matched := orderedMatches(c, q)
	return subseqSpread * float64(matched) / float64(len(q))
}

// orderedMatches counts how many characters of query appear in candidate
// in query order (greedy subsequence scan).
func orderedMatches(candidate, query string) int {
	matched := 0
	ci := 0
	for qi := 0; qi < len(query) && ci < len(candidate); qi++ {
		for ci < len(candidate) {
			hit := candidate[ci] == query[qi]
			ci++
			if hit {
				matched++
				break
			}
		}
	}
	return matched
}
