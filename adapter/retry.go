package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BaseBackoff is the delay before the first retry. Each later retry
// waits twice as long as the one before.
const BaseBackoff = 500 * time.Millisecond

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("non-retriable")

// Permanent wraps err so Retry stops immediately.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Backoff returns the delay before attempt i. Attempt 0 has none.
func Backoff(i int, base time.Duration) time.Duration {
	if i <= 0 {
		return 0
	}
	return time.Duration(1<<uint(i-1)) * base
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when fn succeeds, when fn returns an error
// wrapped by Permanent, or when ctx ends.
func Retry(ctx context.Context, retries int, base time.Duration, fn func(ctx context.Context) error) error {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if d := Backoff(i, base); d > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(d):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
