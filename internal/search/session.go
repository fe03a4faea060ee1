// internal/search/session.go
package search

import (
	"context"

	"search-relevance-engine/internal/models"
	"search-relevance-engine/internal/search/cache"
)

// Session is a debounced query channel for one interactive caller. A
// burst of keystrokes inside the configured window runs one search for
// the final text; superseded submissions are cancelled and their results
// never delivered.
type Session struct {
	engine *Engine
	userID string
	inner  *cache.Session
}

// NewSession creates a debounced session bound to this engine. The window
// comes from the search configuration; with instant search enabled every
// submit runs immediately.
func (e *Engine) NewSession(userID string) *Session {
	return &Session{
		engine: e,
		userID: userID,
		inner:  cache.NewSession(e.debounce),
	}
}

// Submit schedules query for execution once the debounce window elapses
// and hands the outcome to deliver. A newer Submit supersedes a pending
// one; a submission superseded mid-search is dropped without delivery.
// deliver runs on the session's goroutine.
func (s *Session) Submit(query models.Query, deliver func(*Response, error)) {
	s.inner.Submit(query.Text, func(ctx context.Context, text string) {
		q := query
		q.Text = text

		resp, err := s.engine.Search(ctx, Request{Query: q, UserID: s.userID})
		if ctx.Err() != nil {
			return
		}
		deliver(resp, err)
	})
}

// Close cancels any pending submission and rejects future ones.
func (s *Session) Close() {
	s.inner.Close()
}
