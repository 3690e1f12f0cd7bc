package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes a single rate-limit decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store is the keyed counter backing the limiter. Take must be atomic: create
// the counter on the first request in a window, reject at the limit without
// incrementing, and expire entries on their own so no sweep is needed.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Limiter bounds the request rate per (endpoint identifier, client IP) pair
// using a fixed window.
type Limiter struct {
	store Store
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check consumes one slot for the pair if the window still has capacity.
func (l *Limiter) Check(ctx context.Context, identifier, clientIP string, limit int, window time.Duration) (Result, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", identifier, clientIP)

	res, err := l.store.Take(ctx, key, limit, window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit store failed: %w", err)
	}
	return res, nil
}
