package hubsync

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a thread-safe sliding-window admission controller. It
// bounds the number of admitted calls within a trailing window by keeping
// the timestamps of recent admissions and pruning the ones that have aged
// out. The zero value is not usable; construct with NewRateLimiter.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time

	// now is swappable in tests.
	now func() time.Time
}

// NewRateLimiter creates a sliding-window rate limiter admitting at most
// maxRequests calls per window. Non-positive arguments fall back to
// HubSpot's published 100 requests per 10 seconds.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = defaultRateLimitRequests
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		timestamps:  make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Acquire attempts to claim a slot. It returns zero if the call was
// admitted, otherwise the minimum time the caller must wait before trying
// again. Pure flow control; there are no error conditions.
func (l *RateLimiter) Acquire() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) >= l.maxRequests {
		oldest := l.timestamps[0]
		wait := oldest.Add(l.window).Sub(now)
		if wait <= 0 {
			wait = time.Millisecond
		}
		return wait
	}

	l.timestamps = append(l.timestamps, now)
	return 0
}

// WaitAndAcquire blocks until a slot is admitted or the context is
// cancelled. During sustained high-volume operation this can block for up
// to the window length; callers should not hold unrelated locks while
// waiting.
func (l *RateLimiter) WaitAndAcquire(ctx context.Context) error {
	for {
		wait := l.Acquire()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
