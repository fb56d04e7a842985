package retry

import (
	"context"
	"time"
)

// Policy describes how many times an operation may run and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// ExpBackoff doubles the delay per attempt, starting at base and capped
// at max. Attempt numbering starts at 1.
func ExpBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		delay := base << uint(attempt-1)
		if delay > max || delay <= 0 {
			return max
		}
		return delay
	}
}

// Do runs op until it succeeds, the policy is exhausted, or the context
// is cancelled. The last error is returned.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}
