package services

import (
	"context"
	"fmt"
	"time"

	"collectibles-market/marketplace"
	"collectibles-market/storage"
)

// QuotaLimiter caps pricing lookups per caller within a fixed window. The
// counter lives in a CounterStore so every process sharing the store sees the
// same budget.
type QuotaLimiter struct {
	counter storage.CounterStore
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewQuotaLimiter returns a limiter allowing limit lookups per window. A
// non-positive limit disables it.
func NewQuotaLimiter(counter storage.CounterStore, limit int, window time.Duration) *QuotaLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &QuotaLimiter{counter: counter, limit: limit, window: window, now: time.Now}
}

// Allow consumes one lookup for caller. It returns a RateLimitedError once the
// window's budget is spent.
func (q *QuotaLimiter) Allow(ctx context.Context, caller string) error {
	if q == nil || q.limit <= 0 {
		return nil
	}
	if caller == "" {
		caller = "anonymous"
	}

	count, resetAt, err := q.counter.Incr(ctx, "quota:"+caller, q.window)
	if err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	if count > int64(q.limit) {
		wait := resetAt.Sub(q.now())
		if wait < 0 {
			wait = 0
		}
		return &marketplace.RateLimitedError{Operation: "pricing lookup", RetryAfter: wait}
	}
	return nil
}
