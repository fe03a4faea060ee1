// internal/search/cache/cache.go
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/common/metrics"
	"search-relevance-engine/internal/models"
)

// ComputeFunc produces a fresh result batch for a cache key. It runs under
// a context with the cache's compute timeout already applied.
type ComputeFunc func(ctx context.Context) (*models.ResultBatch, error)

// Cache is the query result cache with request coalescing. Per key it
// moves through empty -> pending -> fresh -> stale -> pending; at most one
// computation per key is ever in flight, enforced by singleflight. Stale
// entries are recomputed, not served. Failed or timed-out computations
// write nothing, so a previously fresh entry survives a failed refresh
// until its own TTL expires.
type Cache struct {
	ttl     time.Duration
	timeout time.Duration
	logger  logger.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	batch      *models.ResultBatch
	computedAt time.Time
}

func New(ttl, computeTimeout time.Duration, log logger.Logger) *Cache {
	return &Cache{
		ttl:     ttl,
		timeout: computeTimeout,
		logger:  log,
		entries: make(map[string]entry),
	}
}

// Get returns the batch for key, computing it if the entry is missing or
// stale. Concurrent callers for the same key share a single computation.
// A caller whose context ends while waiting detaches and receives the
// context error; the shared computation keeps running for other waiters.
// The second return value reports whether the batch came from a fresh
// cache entry.
func (c *Cache) Get(ctx context.Context, key string, compute ComputeFunc) (*models.ResultBatch, bool, error) {
	if batch, ok := c.fresh(key); ok {
		metrics.SearchCacheHits.Inc()
		return batch, true, nil
	}
	metrics.SearchCacheMisses.Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A coalesced waiter may arrive just after the leader stored the
		// entry; re-check before recomputing.
		if batch, ok := c.fresh(key); ok {
			return batch, nil
		}

		// The computation is detached from any single caller so that an
		// abandoned request cannot cancel it for the other waiters.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		batch, err := compute(cctx)
		if err != nil {
			// No entry is written on failure or timeout.
			return nil, err
		}
		c.store(key, batch)
		return batch, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			metrics.SearchCoalescedRequests.Inc()
		}
		return res.Val.(*models.ResultBatch), false, nil
	case <-ctx.Done():
		c.logger.Debug("caller detached from pending computation", map[string]interface{}{
			"key": key,
		})
		return nil, false, ctx.Err()
	}
}

// Preload warms cache entries for a known set of common queries through
// the same coalescing path as live requests.
func (c *Cache) Preload(ctx context.Context, keys []string, compute func(ctx context.Context, key string) (*models.ResultBatch, error)) {
	for _, key := range keys {
		k := key
		if _, _, err := c.Get(ctx, k, func(cctx context.Context) (*models.ResultBatch, error) {
			return compute(cctx, k)
		}); err != nil {
			c.logger.Warn("preload failed", map[string]interface{}{
				"key":   k,
				"error": err.Error(),
			})
		}
	}
}

// Len reports the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) fresh(key string) (*models.ResultBatch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.computedAt) >= c.ttl {
		return nil, false
	}
	return e.batch, true
}

func (c *Cache) store(key string, batch *models.ResultBatch) {
	c.mu.Lock()
	c.entries[key] = entry{batch: batch, computedAt: time.Now()}
	c.mu.Unlock()
}
