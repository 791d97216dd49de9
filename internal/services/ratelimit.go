package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// RateLimiter counts actions per identity and action class in windows that
// expire on their own. It is approximate: two racing callers may both pass.
type RateLimiter struct {
	store Store
}

func NewRateLimiter(store Store) *RateLimiter {
	return &RateLimiter{store: store}
}

// CheckAndIncrement allows the action while the counter is below
// maxPerWindow, bumping it and pushing its expiry to window from now.
// A denied call does not count.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, identity, actionClass string, maxPerWindow int, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, fmt.Errorf("rate limit window must be positive")
	}
	key := fmt.Sprintf(KeyRateLimit, actionClass, identity)

	count := 0
	e, err := r.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	default:
		if count, err = strconv.Atoi(string(e.Value)); err != nil {
			count = 0
		}
	}

	if count >= maxPerWindow {
		return false, nil
	}

	if err := r.store.Put(ctx, key, []byte(strconv.Itoa(count+1)), window); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return true, nil
}

// Reset drops the counter for identity and actionClass.
func (r *RateLimiter) Reset(ctx context.Context, identity, actionClass string) error {
	return r.store.Delete(ctx, fmt.Sprintf(KeyRateLimit, actionClass, identity))
}
