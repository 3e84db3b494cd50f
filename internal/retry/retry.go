// Package retry runs an operation again after transient failures, waiting an
// exponentially growing delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrContextCancelled is returned when the context ends while waiting to retry.
var ErrContextCancelled = errors.New("context cancelled during retry")

// Defaults make three attempts with waits of 1s and 3s between them. A
// fourth attempt would wait 9s.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
	DefaultMultiplier   = 3.0
	DefaultMaxDelay     = 30 * time.Second
)

// Config configures retry behaviour.
type Config struct {
	// MaxAttempts counts the first call.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// IsRetryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	IsRetryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = DefaultMultiplier
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsTransient
	}
	return c
}

// Backoff returns the wait after the given failed attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (c Config) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// retryable is implemented by errors that know whether they are transient.
type retryable interface {
	Retryable() bool
}

// IsTransient reports whether any error in err's chain declares itself
// retryable, or err is a deadline expiry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unchanged so callers can
// inspect its kind.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		delay := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}
