// Package retry implements exponential backoff with jitter for the two
// external call sites (text generation and delivery hand-off). Quality
// retries are a separate, orchestrator-owned policy; this package only
// covers transport failures.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior for one call site.
type Policy struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // 0.0-1.0 fraction of the delay
}

// DefaultPolicy covers the text-generation call site.
func DefaultPolicy(maxAttempts int) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
	}
}

// NextDelay calculates the backoff delay for a zero-based attempt number.
func (p Policy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		jitter := delay * p.Jitter
		delay += (rand.Float64() - 0.5) * 2 * jitter
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}

// Do runs op until it succeeds, the attempt cap is hit, or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		select {
		case <-time.After(p.NextDelay(attempt)):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", attempts, lastErr)
}
