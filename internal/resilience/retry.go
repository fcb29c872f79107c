package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is the shared exponential-backoff retry policy applied to task
// executions and LLM calls.
type Policy struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts int

	// Factor multiplies the delay after each failed attempt.
	Factor float64

	// MinTimeout is the delay before the first retry.
	MinTimeout time.Duration

	// MaxTimeout caps every delay.
	MaxTimeout time.Duration

	// Randomize scales each delay by a random value in [1, 2).
	Randomize bool

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool

	// OnRetry runs before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the platform retry policy: 3 attempts, factor 1.8,
// 500ms to 30s, no randomization.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Factor:      1.8,
		MinTimeout:  500 * time.Millisecond,
		MaxTimeout:  30 * time.Second,
	}
}

// PolicyFromConfig builds a Policy from config values, keeping defaults for
// zero values.
func PolicyFromConfig(maxAttempts int, factor float64, minTimeoutMs, maxTimeoutMs int, randomize bool) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if factor > 0 {
		p.Factor = factor
	}
	if minTimeoutMs > 0 {
		p.MinTimeout = time.Duration(minTimeoutMs) * time.Millisecond
	}
	if maxTimeoutMs > 0 {
		p.MaxTimeout = time.Duration(maxTimeoutMs) * time.Millisecond
	}
	p.Randomize = randomize
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == p.MaxAttempts-1 {
			return zero, lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// Backoff returns the delay after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	random := 1.0
	if p.Randomize {
		random += rand.Float64()
	}
	delay := random * float64(p.MinTimeout) * math.Pow(p.Factor, float64(attempt))
	if delay > float64(p.MaxTimeout) {
		delay = float64(p.MaxTimeout)
	}
	return time.Duration(delay)
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Factor <= 0 {
		p.Factor = d.Factor
	}
	if p.MinTimeout <= 0 {
		p.MinTimeout = d.MinTimeout
	}
	if p.MaxTimeout <= 0 {
		p.MaxTimeout = d.MaxTimeout
	}
	return p
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
