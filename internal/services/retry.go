package services

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/backoff/v2"

	"twod-ledger-backend/internal/metrics"
)

// RetryPolicy bounds how often an optimistic transaction is re-run after
// losing a race.
type RetryPolicy struct {
	Attempts    int
	MinInterval time.Duration
	MaxInterval time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:    5,
		MinInterval: 10 * time.Millisecond,
		MaxInterval: 250 * time.Millisecond,
	}
}

// Do runs fn from a fresh read each time until it returns anything other
// than ErrVersionConflict. When the policy is exhausted the last conflict is
// returned.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := backoff.Exponential(
		backoff.WithMinInterval(p.MinInterval),
		backoff.WithMaxInterval(p.MaxInterval),
		backoff.WithJitterFactor(0.2),
		backoff.WithMaxRetries(p.Attempts),
	)

	b := policy.Start(ctx)
	var err error
	for backoff.Continue(b) {
		err = fn(ctx)
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		metrics.StoreConflicts.WithLabelValues(op).Inc()
	}

	if err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrVersionConflict
	}
	return err
}
