package inspector

import (
	"context"
	"time"
)

// withRetry reruns fn with doubling backoff until it succeeds, the
// attempt budget is spent, or the context is cancelled. Only trace
// acquisition is retried; classification never is.
func withRetry(ctx context.Context, retries int, backoff time.Duration, fn func(context.Context) error) error {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return err
}
