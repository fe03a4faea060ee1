// internal/models/candidates.go
package models

import "time"

// Candidate shapes are what the storage collaborator hands back from a
// coarse batch fetch. The engine only refines and orders them; it never
// queries storage for ranking logic.

type ItemCandidate struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	RatingCount *int       `json:"ratingCount,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Status      string     `json:"status,omitempty"`
}

type UserCandidate struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName,omitempty"`
	Bio       string `json:"bio,omitempty"`
	ItemCount *int   `json:"itemCount,omitempty"`
}

type TagCandidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UsageCount *int   `json:"usageCount,omitempty"`
}

type ActionCandidate struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ReviewCandidate struct {
	ID      string   `json:"id"`
	Excerpt string   `json:"excerpt"`
	Rating  *float64 `json:"rating,omitempty"`
}

// CandidateBatch is one storage fetch worth of raw candidates across all
// result categories.
type CandidateBatch struct {
	Items   []ItemCandidate   `json:"items,omitempty"`
	Users   []UserCandidate   `json:"users,omitempty"`
	Tags    []TagCandidate    `json:"tags,omitempty"`
	Actions []ActionCandidate `json:"actions,omitempty"`
	Reviews []ReviewCandidate `json:"reviews,omitempty"`
}

// Total returns the number of candidates across every category.
func (b CandidateBatch) Total() int {
	return len(b.Items) + len(b.Users) + len(b.Tags) + len(b.Actions) + len(b.Reviews)
}
