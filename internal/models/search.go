// internal/models/search.go
package models

import (
	"strings"
	"time"
)

// ResultKind discriminates the entity type a scored result came from.
type ResultKind string

const (
	KindItem   ResultKind = "item"
	KindUser   ResultKind = "user"
	KindTag    ResultKind = "tag"
	KindAction ResultKind = "action"
	KindReview ResultKind = "review"
)

// Query is a single search request as issued by the caller. It is
// immutable once built; the normalized form is the cache and trend key.
type Query struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
}

// Normalized returns the trimmed, lower-cased query text.
func (q Query) Normalized() string {
	return strings.ToLower(strings.TrimSpace(q.Text))
}

// CacheKey combines the normalized text with the filter signature so that
// the same text under different filters never shares a cache entry.
func (q Query) CacheKey() string {
	key := q.Normalized()
	if q.Category != "" {
		key += "|cat:" + strings.ToLower(q.Category)
	}
	if q.Cursor != "" {
		key += "|cur:" + q.Cursor
	}
	return key
}

// ScoredResult is one ranked entry in a result batch. Only the fields
// matching Kind are populated; optional signals stay nil when the source
// record did not carry them.
type ScoredResult struct {
	Kind        ResultKind `json:"kind"`
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	Rating      *float64   `json:"rating,omitempty"`
	RatingCount *int       `json:"ratingCount,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`

	Username  string `json:"username,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	Bio       string `json:"bio,omitempty"`
	ItemCount *int   `json:"itemCount,omitempty"`

	UsageCount *int `json:"usageCount,omitempty"`

	Score float64 `json:"score"`
}

// ResultBatch is one computed, category-partitioned set of ranked
// results. Each bucket is ordered by score descending.
type ResultBatch struct {
	Items   []ScoredResult `json:"items"`
	Users   []ScoredResult `json:"users"`
	Tags    []ScoredResult `json:"tags"`
	Actions []ScoredResult `json:"actions"`
	Reviews []ScoredResult `json:"reviews"`
}

// Total returns the number of results across every bucket.
func (b ResultBatch) Total() int {
	return len(b.Items) + len(b.Users) + len(b.Tags) + len(b.Actions) + len(b.Reviews)
}

// ClickedResult records one click inside a history record.
type ClickedResult struct {
	ResultID string     `json:"resultId"`
	Kind     ResultKind `json:"kind"`
	Position int        `json:"position"`
}

// SearchHistoryRecord is the durable per-user record of one executed
// search. Append-only; only ClickedResults is ever mutated, and only to
// append.
type SearchHistoryRecord struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId,omitempty"`
	Query          string          `json:"query"`
	Timestamp      time.Time       `json:"timestamp"`
	ResultCount    int             `json:"resultCount"`
	ClickedResults []ClickedResult `json:"clickedResults,omitempty"`
}

// TrendingTerm tracks cumulative occurrences of one normalized term.
// Counts only grow; pruning is not this engine's concern.
type TrendingTerm struct {
	Term        string    `json:"term"`
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
	Category    string    `json:"category,omitempty"`
}

// MetricEventType is the kind of a SearchMetricEvent.
type MetricEventType string

const (
	MetricSearch MetricEventType = "search"
	MetricClick  MetricEventType = "click"
	MetricError  MetricEventType = "error"
)

// SearchMetricEvent is a write-once analytics event. The ranking path
// never reads these back.
type SearchMetricEvent struct {
	ID          string          `json:"id"`
	Type        MetricEventType `json:"type"`
	Query       string          `json:"query"`
	UserID      string          `json:"userId,omitempty"`
	ResultCount *int            `json:"resultCount,omitempty"`
	ResultID    string          `json:"resultId,omitempty"`
	ResultKind  ResultKind      `json:"resultKind,omitempty"`
	Position    *int            `json:"position,omitempty"`
	LatencyMs   *int64          `json:"latencyMs,omitempty"`
	Error       string          `json:"error,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
