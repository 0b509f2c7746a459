// Package retry provides the single retry/backoff policy shared by the health
// monitor and the request router, so both use one tested implementation.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes a bounded retry loop with exponential backoff.
// NewPolicy should be used to create instances of Policy.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth of the delay between attempts.
	MaxDelay time.Duration
}

// NewPolicy creates a validated retry Policy.
func NewPolicy(maxAttempts int, baseDelay time.Duration, maxDelay time.Duration) (Policy, error) {
	p := Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate ensures the policy describes a usable retry loop.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base delay cannot be negative, got %s", p.BaseDelay)
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay (%s) cannot be below base delay (%s)", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Delay returns the backoff delay preceding the given retry attempt.
// Attempt numbering starts at 1 for the first retry; attempt 0 (the initial
// try) has no delay. Growth is exponential (base, 2*base, 4*base, ...) and
// capped at MaxDelay when set.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay == 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Wait blocks for the backoff delay preceding the given retry attempt,
// returning early with the context's error if it is canceled first.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d == 0 {
		return ctx.Err()
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
