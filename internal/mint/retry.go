package mint

import (
	"context"
	"time"
)

// withRetry calls fn until it returns nil, up to maxRetries extra attempts,
// doubling the delay between attempts from baseDelay. An error for which
// retryable reports false is returned at once without sleeping; a nil
// retryable treats every error as retryable. Cancelling ctx while waiting
// returns ctx.Err().
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || (retryable != nil && !retryable(err)) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
