package retry

import (
	"context"
	"math"
	"time"
)

// Classifier decides whether an error is worth retrying. Terminal errors
// (business declines, validation failures) must return false.
type Classifier func(err error) bool

// Policy describes a bounded exponential-backoff retry policy
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   Classifier

	// sleep is overridable for tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a retry policy with exponential backoff (base * 2^attempt)
func NewPolicy(maxAttempts int, baseDelay time.Duration, retryable Classifier) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Retryable:   retryable,
		sleep:       sleepCtx,
	}
}

// WithSleep replaces the sleep function. Used by tests.
func (p *Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Policy {
	p.sleep = sleep
	return p
}

// Do runs fn up to MaxAttempts times. A non-retryable error is returned
// immediately; a retryable one is returned after the attempt budget is
// exhausted. Delay before attempt n (1-based) is BaseDelay * 2^(n-1).
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
