// Package poll provides a cancellable "poll until predicate or timeout" loop.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the bound elapses before the condition holds.
var ErrTimeout = errors.New("poll: timed out")

// ConditionFunc reports whether polling can stop. A non-nil error stops polling
// and is returned as-is.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// Until evaluates cond immediately and then every interval until it reports done,
// returns an error, ctx is cancelled, or timeout elapses.
func Until(ctx context.Context, interval, timeout time.Duration, cond ConditionFunc) error {
	if interval <= 0 {
		return errors.New("poll: interval must be positive")
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			// One last look so a result that landed right at the bound is not lost.
			done, err := cond(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			return ErrTimeout
		case <-ticker.C:
		}
	}
}
