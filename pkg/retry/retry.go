// Package retry runs an external call under a fixed-delay retry policy.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds how often and how patiently a call is retried
type Policy struct {
	MaxRetries int           // extra attempts after the first
	Delay      time.Duration // fixed wait between attempts

	// OnRetry is called before waiting for the next attempt
	OnRetry func(attempt int, err error)
}

// Default returns two extra attempts spaced one second apart
func Default() Policy {
	return Policy{MaxRetries: 2, Delay: time.Second}
}

// Attempts returns the total number of calls the policy allows
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Do calls fn until it succeeds or the policy is exhausted.
// Only the last error is returned. The context is checked before every
// attempt and while waiting between attempts.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, interrupted(err, lastErr)
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := wait(ctx, p.Delay); err != nil {
			return zero, interrupted(err, lastErr)
		}
	}
	return zero, fmt.Errorf("retry: %d attempts: %w", attempts, lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func interrupted(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}
