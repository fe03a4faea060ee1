// internal/search/cache/debounce.go
package cache

import (
	"context"
	"sync"
	"time"
)

// Session debounces the query edits of one input session. A burst of
// submits within the window collapses into a single run for the final
// text; each new submit cancels the pending timer and the context handed
// to the previous run, so superseded results are discarded rather than
// applied. The run callback owns checking its context before delivering.
type Session struct {
	window time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64
	closed bool
}

// NewSession creates a debounce session. A non-positive window disables
// debouncing (instant search): every submit runs immediately.
func NewSession(window time.Duration) *Session {
	return &Session{window: window}
}

// Submit schedules run(ctx, text) after the debounce window. The context
// is cancelled if a newer submit supersedes this one or the session is
// closed. run executes on its own goroutine.
func (s *Session) Submit(text string, run func(ctx context.Context, text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.gen++
	gen := s.gen

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	fire := func() {
		if !s.current(gen) {
			return
		}
		run(ctx, text)
	}

	if s.window <= 0 {
		go fire()
		return
	}
	s.timer = time.AfterFunc(s.window, fire)
}

// Close cancels any pending submit and rejects future ones.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}
