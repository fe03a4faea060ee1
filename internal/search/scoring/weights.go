// internal/search/scoring/weights.go
package scoring

// Weights are the named signal weights used by the entity scorers. They
// are passed explicitly into every scoring call; there is no mutable
// package-level default.
type Weights struct {
	ExactMatch  float64 `json:"exactMatch"`
	FuzzyMatch  float64 `json:"fuzzyMatch"`
	Title       float64 `json:"title"`
	Description float64 `json:"description"`
	Tag         float64 `json:"tag"`
	Username    float64 `json:"username"`
	Popularity  float64 `json:"popularity"`
	Recency     float64 `json:"recency"`
}

// Override carries a partial weight override. Nil fields keep the default.
type Override struct {
	ExactMatch  *float64 `json:"exactMatch,omitempty"`
	FuzzyMatch  *float64 `json:"fuzzyMatch,omitempty"`
	Title       *float64 `json:"title,omitempty"`
	Description *float64 `json:"description,omitempty"`
	Tag         *float64 `json:"tag,omitempty"`
	Username    *float64 `json:"username,omitempty"`
	Popularity  *float64 `json:"popularity,omitempty"`
	Recency     *float64 `json:"recency,omitempty"`
}

// DefaultWeights returns the documented default weight set.
func DefaultWeights() Weights {
	return Weights{
		ExactMatch:  100,
		FuzzyMatch:  50,
		Title:       30,
		Description: 20,
		Tag:         25,
		Username:    40,
		Popularity:  15,
		Recency:     10,
	}
}

// Merge returns a copy of w with every non-nil override applied.
func (w Weights) Merge(o *Override) Weights {
	if o == nil {
		return w
	}
	if o.ExactMatch != nil {
		w.ExactMatch = *o.ExactMatch
	}
	if o.FuzzyMatch != nil {
		w.FuzzyMatch = *o.FuzzyMatch
	}
	if o.Title != nil {
		w.Title = *o.Title
	}
	if o.Description != nil {
		w.Description = *o.Description
	}
	if o.Tag != nil {
		w.Tag = *o.Tag
	}
	if o.Username != nil {
		w.Username = *o.Username
	}
	if o.Popularity != nil {
		w.Popularity = *o.Popularity
	}
	if o.Recency != nil {
		w.Recency = *o.Recency
	}
	return w
}
