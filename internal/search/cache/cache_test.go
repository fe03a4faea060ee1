// internal/search/cache/cache_test.go
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/models"
)

func testBatch(id string) *models.ResultBatch {
	return &models.ResultBatch{
		Items: []models.ScoredResult{{Kind: models.KindItem, ID: id, Score: 1}},
	}
}

func TestCache_SecondRequestIsHit(t *testing.T) {
	c := New(time.Minute, time.Second, logger.NewNoOpLogger())
	var computes atomic.Int32

	compute := func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		return testBatch("a"), nil
	}

	first, hit, err := c.Get(context.Background(), "cat", compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.Get(context.Background(), "cat", compute)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, int32(1), computes.Load())
	assert.Equal(t, first, second)
}

func TestCache_ConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	c := New(time.Minute, time.Second, logger.NewNoOpLogger())
	var computes atomic.Int32

	compute := func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		time.Sleep(50 * time.Millisecond)
		return testBatch("shared"), nil
	}

	const callers = 8
	results := make([]*models.ResultBatch, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch, _, err := c.Get(context.Background(), "cat", compute)
			assert.NoError(t, err)
			results[i] = batch
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for i := 1; i < callers; i++ {
		assert.Equal(t, results[0], results[i])
	}
}

func TestCache_DifferentKeysComputeIndependently(t *testing.T) {
	c := New(time.Minute, time.Second, logger.NewNoOpLogger())
	var computes atomic.Int32

	compute := func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		return testBatch("x"), nil
	}

	_, _, err := c.Get(context.Background(), "cat", compute)
	require.NoError(t, err)
	_, _, err = c.Get(context.Background(), "dog", compute)
	require.NoError(t, err)

	assert.Equal(t, int32(2), computes.Load())
}

func TestCache_StaleEntryIsRecomputed(t *testing.T) {
	c := New(20*time.Millisecond, time.Second, logger.NewNoOpLogger())
	var computes atomic.Int32

	compute := func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		return testBatch("v"), nil
	}

	_, _, err := c.Get(context.Background(), "cat", compute)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, hit, err := c.Get(context.Background(), "cat", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), computes.Load())
}

func TestCache_ErrorWritesNothing(t *testing.T) {
	c := New(time.Minute, time.Second, logger.NewNoOpLogger())
	boom := errors.New("storage unavailable")
	var computes atomic.Int32

	_, _, err := c.Get(context.Background(), "cat", func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	// The next request retries and can succeed.
	batch, _, err := c.Get(context.Background(), "cat", func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		return testBatch("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", batch.Items[0].ID)
	assert.Equal(t, int32(2), computes.Load())
}

func TestCache_FailedRefreshKeepsOldEntry(t *testing.T) {
	c := New(20*time.Millisecond, time.Second, logger.NewNoOpLogger())

	_, _, err := c.Get(context.Background(), "cat", func(ctx context.Context) (*models.ResultBatch, error) {
		return testBatch("old"), nil
	})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, _, err = c.Get(context.Background(), "cat", func(ctx context.Context) (*models.ResultBatch, error) {
		return nil, errors.New("refresh failed")
	})
	assert.Error(t, err)

	// The stale entry is still there; the failed refresh did not wipe it.
	assert.Equal(t, 1, c.Len())
}

func TestCache_ComputeTimeout(t *testing.T) {
	c := New(time.Minute, 20*time.Millisecond, logger.NewNoOpLogger())

	_, _, err := c.Get(context.Background(), "slow", func(ctx context.Context) (*models.ResultBatch, error) {
		select {
		case <-time.After(time.Second):
			return testBatch("late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Len())
}

func TestCache_AbandonedCallerDetachesWithoutCancelling(t *testing.T) {
	c := New(time.Minute, time.Second, logger.NewNoOpLogger())
	var computes atomic.Int32

	compute := func(ctx context.Context) (*models.ResultBatch, error) {
		computes.Add(1)
		time.Sleep(80 * time.Millisecond)
		return testBatch("survivor"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.Get(ctx, "cat", compute)
		errCh <- err
	}()

	var patientBatch *models.ResultBatch
	var patientErr error
	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		patientBatch, _, patientErr = c.Get(context.Background(), "cat", compute)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)

	<-done
	require.NoError(t, patientErr)
	assert.Equal(t, "survivor", patientBatch.Items[0].ID)
	assert.Equal(t, int32(1), computes.Load())
}

func TestCache_Preload(t *testing.T) {
	c := New(time.Minute, time.Second, logger.NewNoOpLogger())
	var computes atomic.Int32

	c.Preload(context.Background(), []string{"coffee", "tea"}, func(ctx context.Context, key string) (*models.ResultBatch, error) {
		computes.Add(1)
		return testBatch(key), nil
	})

	assert.Equal(t, int32(2), computes.Load())
	assert.Equal(t, 2, c.Len())

	batch, hit, err := c.Get(context.Background(), "coffee", func(ctx context.Context) (*models.ResultBatch, error) {
		t.Fatal("preloaded entry should not recompute")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "coffee", batch.Items[0].ID)
}

func TestSession_DebouncesBurstToFinalValue(t *testing.T) {
	s := NewSession(30 * time.Millisecond)
	defer s.Close()

	var runs atomic.Int32
	var got atomic.Value

	run := func(ctx context.Context, text string) {
		runs.Add(1)
		got.Store(text)
	}

	s.Submit("c", run)
	s.Submit("ca", run)
	s.Submit("cat", run)

	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, "cat", got.Load())
}

func TestSession_SupersededContextIsCancelled(t *testing.T) {
	s := NewSession(1 * time.Millisecond)
	defer s.Close()

	firstCtx := make(chan context.Context, 1)
	s.Submit("old", func(ctx context.Context, text string) {
		firstCtx <- ctx
		<-ctx.Done()
	})

	var ctx context.Context
	select {
	case ctx = <-firstCtx:
	case <-time.After(time.Second):
		t.Fatal("first submit never ran")
	}

	s.Submit("new", func(context.Context, string) {})

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded context was not cancelled")
	}
}

func TestSession_InstantSearchRunsImmediately(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	done := make(chan string, 1)
	s.Submit("now", func(ctx context.Context, text string) {
		done <- text
	})

	select {
	case text := <-done:
		assert.Equal(t, "now", text)
	case <-time.After(time.Second):
		t.Fatal("instant submit did not run")
	}
}

func TestSession_CloseCancelsPending(t *testing.T) {
	s := NewSession(50 * time.Millisecond)

	var runs atomic.Int32
	s.Submit("pending", func(ctx context.Context, text string) {
		runs.Add(1)
	})
	s.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	// Submits after Close are rejected.
	s.Submit("late", func(ctx context.Context, text string) {
		runs.Add(1)
	})
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}
