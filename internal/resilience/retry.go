// Package resilience provides retry, deadline and circuit breaker primitives
// for calls to external offer providers.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff.
type Policy struct {
	// Retries is the number of additional attempts after the first one.
	// Zero means a single attempt. Default: 2.
	Retries int

	// BaseDelay is the delay before the first retry. Later retries wait
	// BaseDelay * Multiplier^n. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff. Default: 10s.
	MaxDelay time.Duration

	// Multiplier scales the delay after each retry. Default: 2.0.
	Multiplier float64

	// JitterFraction adds ±fraction random jitter to each delay. Default: 0.
	JitterFraction float64

	// ShouldRetry decides whether an error is worth another attempt.
	// If nil, every error is retried.
	ShouldRetry func(err error) bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the provider retry policy: 3 attempts total with
// 500ms/1000ms backoff between them.
func DefaultPolicy() Policy {
	return Policy{
		Retries:    2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	return applyDefaults(p).Retries + 1
}

// Retry runs fn until it succeeds, the policy is exhausted, ShouldRetry
// rejects the error, or ctx is done. The attempt index passed to fn starts at
// 0. Only the last attempt's error is returned.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	p = applyDefaults(p)

	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		val, err := fn(ctx, attempt)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt == p.Retries {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(Backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(p Policy) Policy {
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// Backoff returns the delay to wait after the given zero-based attempt.
func Backoff(attempt int, p Policy) time.Duration {
	p = applyDefaults(p)

	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFraction > 0 {
		jitterRange := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry of a provider
// call.
func RetryLogger(provider, vertical string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying provider search",
			zap.String("provider", provider),
			zap.String("vertical", vertical),
			zap.Int("attempt", attempt),
			zap.Bool("transient", IsTransient(err)),
			zap.Error(err),
		)
	}
}
