package hubsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a RateLimiter without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_AdmitsUpToLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(5, time.Second)
	limiter.now = clock.Now

	for i := 0; i < 5; i++ {
		assert.Zero(t, limiter.Acquire(), "admission %d should be immediate", i)
	}
}

func TestRateLimiter_OverLimitReportsWait(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(5, time.Second)
	limiter.now = clock.Now

	for i := 0; i < 5; i++ {
		require.Zero(t, limiter.Acquire())
	}

	wait := limiter.Acquire()
	assert.Positive(t, wait, "6th admission within the window must wait")
	assert.LessOrEqual(t, wait, time.Second)

	// After waiting out the window the call is admitted.
	clock.Advance(wait)
	assert.Zero(t, limiter.Acquire())
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(2, 10*time.Second)
	limiter.now = clock.Now

	require.Zero(t, limiter.Acquire())
	clock.Advance(6 * time.Second)
	require.Zero(t, limiter.Acquire())

	// First slot ages out 4 seconds from now.
	wait := limiter.Acquire()
	assert.Equal(t, 4*time.Second, wait)

	clock.Advance(4 * time.Second)
	assert.Zero(t, limiter.Acquire())
}

func TestRateLimiter_Defaults(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	assert.Equal(t, defaultRateLimitRequests, limiter.maxRequests)
	assert.Equal(t, defaultRateLimitWindow, limiter.window)
}

func TestRateLimiter_ConcurrentAcquire(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(10, time.Minute)
	limiter.now = clock.Now

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Acquire() == 0 {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// No lost or double admissions under contention.
	assert.Equal(t, 10, admitted)
}

func TestRateLimiter_WaitAndAcquire(t *testing.T) {
	limiter := NewRateLimiter(2, 50*time.Millisecond)

	require.NoError(t, limiter.WaitAndAcquire(context.Background()))
	require.NoError(t, limiter.WaitAndAcquire(context.Background()))

	// Third call blocks until the window slides, then succeeds.
	start := time.Now()
	require.NoError(t, limiter.WaitAndAcquire(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestRateLimiter_WaitAndAcquireCancelled(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	require.NoError(t, limiter.WaitAndAcquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := limiter.WaitAndAcquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
