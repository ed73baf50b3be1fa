// Package retry implements the bounded exponential backoff spec.md §7
// requires for transient infra errors (database acquisition, broker
// publish) inside the lifetime of a single request or task.
package retry

import (
	"context"
	"time"
)

// Policy configures backoff bounds.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default matches the teacher's rate-limit/DB-pool timeouts order of
// magnitude: a handful of fast retries, capped well under a request
// deadline.
var Default = Policy{
	MaxAttempts: 3,
	BaseDelay:   20 * time.Millisecond,
	MaxDelay:    500 * time.Millisecond,
}

// Do runs fn until it succeeds, ctx is done, or the policy's attempt
// budget is exhausted. shouldRetry decides whether a given error is
// transient; the last error is returned verbatim when attempts run out.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, fn func() error) error {
	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) || attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
