package embedder

import (
	"context"
	"math/rand"
	"time"
)

// Retry defaults
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// Policy describes the retry/backoff behavior applied to transient provider
// failures. It is an explicit value passed into the client rather than control
// flow hidden in error handling, so it can be tested with a fake clock.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Jitter returns the random component added to a computed delay.
	// Defaults to up to 10% of the delay.
	Jitter func(delay time.Duration) time.Duration

	// Sleep waits for the given duration or until the context is done.
	// Defaults to a real timer; tests substitute an instant clock.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the production retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// delay computes the backoff for a 0-based attempt: base * 2^attempt plus
// jitter, capped at MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter != nil {
		d += p.Jitter(d)
	} else {
		d += time.Duration(rand.Float64() * 0.1 * float64(d))
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryWithBackoff runs fn, retrying transient failures per the policy.
// Non-transient failures and context cancellation surface immediately.
func retryWithBackoff[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsTransient(err) {
			return zero, err
		}
		if attempt < attempts-1 {
			if err := p.sleep(ctx, p.delay(attempt)); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}
