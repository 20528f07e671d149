// Package clock provides helpers for waiting on chain state.
package clock

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned by Poll when fn still asks for a retry after the last attempt.
var ErrAttemptsExhausted = errors.New("poll attempts exhausted")

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll calls fn up to attempts times, sleeping interval between calls, until fn reports done
// or returns an error that retry does not accept. The last error seen is wrapped together with
// ErrAttemptsExhausted when every attempt was used.
func Poll(ctx context.Context, interval time.Duration, attempts int, retry func(error) bool, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil || !retry(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if err := SleepWithContext(ctx, interval); err != nil {
			return err
		}
	}
	return errors.Join(ErrAttemptsExhausted, lastErr)
}
