// Package retry provides a bounded retry loop with a pluggable delay
// schedule.
package retry

import (
	"context"
	"time"
)

// Do runs op up to attempts times, sleeping delay(attempt) between failures
// (attempt counts from 1). It returns nil on the first success, the last
// error once attempts are exhausted, or the context error if ctx is done
// while waiting.
func Do(ctx context.Context, attempts int, delay func(attempt int) time.Duration, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// Linear returns a delay schedule of base, 2*base, 3*base, ...
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}
