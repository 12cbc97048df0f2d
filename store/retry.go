package store

import (
	"context"
	"time"

	"pixelfeed/apperr"
)

const (
	retryAttempts = 3
	retryBase     = 200 * time.Millisecond
)

// WithRetry re-runs op on transient failures with capped backoff.
// Validation, authorization and not-found errors pass through
// untouched; they will not succeed on retry.
func WithRetry(ctx context.Context, op func(context.Context) error) error {
	var err error
	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apperr.Transient("retry", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = op(ctx)
		if err == nil || !apperr.IsTransient(err) {
			return err
		}
	}
	return err
}
