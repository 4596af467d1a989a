// Package base provides behavior shared by sources and destinations.
package base

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// RetryPolicy defines retry behavior with exponential backoff
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64

	// ShouldRetry decides whether a failed attempt is tried again.
	// Defaults to errors.IsRetryable.
	ShouldRetry func(error) bool

	// OnRetry is called before sleeping ahead of another attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewRetryPolicy builds a policy from the sync.retry settings
func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	rp := DefaultRetryPolicy()
	if cfg.Attempts > 0 {
		rp.MaxAttempts = cfg.Attempts
	}
	if cfg.InitialDelay > 0 {
		rp.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		rp.MaxDelay = cfg.MaxDelay
	}
	if cfg.Multiplier >= 1 {
		rp.Multiplier = cfg.Multiplier
	}
	return rp
}

// Execute runs fn until it succeeds, fails with a non-retryable error, or
// the attempts are used up. The error of the last attempt is returned
// unchanged so callers can still inspect its type.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	shouldRetry := rp.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = errors.IsRetryable
	}

	attempts := rp.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == attempts-1 {
			break
		}

		delay := rp.calculateDelay(attempt)
		if rp.OnRetry != nil {
			rp.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "retry cancelled").
				WithDetail("last_error", lastErr.Error())
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateDelay calculates the delay after the given zero-based attempt
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))

	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	// jitter
	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta //nolint:gosec // jitter only
	}

	return time.Duration(delay)
}

// Clone creates a copy of the retry policy
func (rp *RetryPolicy) Clone() *RetryPolicy {
	c := *rp
	return &c
}

// WithOnRetry returns a new policy reporting each retry to fn
func (rp *RetryPolicy) WithOnRetry(fn func(attempt int, delay time.Duration, err error)) *RetryPolicy {
	policy := rp.Clone()
	policy.OnRetry = fn
	return policy
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}
