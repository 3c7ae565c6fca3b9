// Package backoff provides exponential backoff and a bounded retry loop.
package backoff

import (
	"context"
	"errors"
	"math"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Exponential returns the delay before the given retry.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 100 * time.Millisecond
	maxBackoff := 5 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}
	return time.Duration(d)
}

// permanentError stops Retry immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to retries+1 times, sleeping Exponential(n) before the
// n-th retry. It returns nil on the first success, the unwrapped error of a
// Permanent failure, ctx.Err() if the context ends while waiting, or the
// last error once retries are used up. The returned int is the number of
// retries performed.
func Retry(ctx context.Context, retries int, cfg *Config, fn func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := range retries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(Exponential(attempt, cfg)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return attempt, perm.err
		}
	}
	return retries, lastErr
}
