// Package retry provides the bounded retry policy used for calls to the
// platform API and the token endpoint.
package retry

import (
	"context"
	"time"
)

// sleep is a variable to allow patching in tests.
var sleep = time.Sleep

// Policy describes a bounded retry with exponential backoff. Retryable decides
// which errors are worth another attempt; everything else fails immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

// Default returns the policy used when nothing is configured: three attempts
// with a 500ms base delay.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Retryable:   retryable,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempt
// budget is exhausted or the context is done. The last error is returned as-is.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sleep(delay)
			delay *= 2
		}

		if err = op(); err == nil {
			return nil
		}

		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
	}

	return err
}
