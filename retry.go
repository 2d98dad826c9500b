package notificationhubs

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

type (
	// RetryOptions configures how the request pipeline re-attempts operations
	// that fail with a transient error. The options are read only once a Hub
	// has been constructed.
	RetryOptions struct {
		// MaxRetries is the number of re-attempts after the initial one. Zero
		// disables retries entirely.
		MaxRetries int
		// Delay is the wait between attempts. It is used as-is for every wait
		// unless the failed attempt carried a server specified Retry-After,
		// which takes precedence for that single wait.
		Delay time.Duration
		// MaxDelay optionally caps the wait between attempts
		MaxDelay time.Duration
	}
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second
)

func defaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: defaultMaxRetries,
		Delay:      defaultRetryDelay,
	}
}

// runWithRetry drives an action through the retry loop: attempt, classify,
// then either succeed, give up, or wait and re-attempt.
//
// Only typed errors flagged transient are retried. A permanent typed error,
// or any error that is not a typed *Error (context cancellation included),
// ends the loop immediately. When the retry budget runs out the last
// transient error is surfaced as-is so the original diagnosis survives.
// Attempts within one call are strictly sequential.
func runWithRetry(ctx context.Context, opts RetryOptions, action func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = opts.Delay
	}
	delays := &backoff.Backoff{
		Min:    opts.Delay,
		Max:    maxDelay,
		Factor: 1,
	}

	for attempt := 0; ; attempt++ {
		item, err := action(ctx)
		if err == nil {
			return item, nil
		}

		typed, ok := asError(err)
		if !ok || !typed.IsTransient() {
			return nil, err
		}
		if attempt >= opts.MaxRetries {
			return nil, err
		}

		delay := delays.Duration()
		if typed.RetryAfter > 0 {
			delay = typed.RetryAfter
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
