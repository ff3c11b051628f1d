package exchange

import (
	"context"
	"errors"
	"time"
)

// RetryWithResetWindow retries fn up to maxAttempts times on a retriable
// Error, but resets the attempt counter to zero whenever more than
// resetAfter has elapsed since the last attempt — a long-lived stream that
// hits one transient error per hour should never exhaust its budget and
// give up for good. A permanent Error (Retriable == false) or any non-Error
// failure is returned immediately without retrying.
func RetryWithResetWindow(ctx context.Context, maxAttempts int, resetAfter time.Duration, fn func(ctx context.Context) error) error {
	attempts := 0
	var lastAttempt time.Time

	for {
		now := time.Now()
		if !lastAttempt.IsZero() && now.Sub(lastAttempt) > resetAfter {
			attempts = 0
		}
		lastAttempt = now

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var exErr *Error
		if !errors.As(err, &exErr) || !exErr.Retriable {
			return err
		}

		attempts++
		if attempts >= maxAttempts {
			return err
		}

		backoff := time.Duration(attempts) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
