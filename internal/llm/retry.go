// Package llm - retry.go provides the parameterized retry policy applied
// uniformly across providers.
package llm

import (
	"context"
	"time"
)

// Policy is a retry schedule: a classification function, backoff parameters
// and an attempt ceiling. Rate-limit failures wait materially longer than
// generic retryable failures before the per-attempt doubling kicks in.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	RateLimitDelay time.Duration
	Classify       func(error) FailureKind

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// DefaultPolicy returns the standard provider retry schedule: 5 attempts,
// exponential backoff, longer base delay on rate limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		BaseDelay:      2 * time.Second,
		RateLimitDelay: 15 * time.Second,
		Classify:       KindOf,
	}
}

// Do runs call until it succeeds, fails terminally, or exhausts the attempt
// budget. Non-retryable failure kinds return immediately. The final
// attempt's failure is returned as a value, never panicked, so sibling work
// is unaffected.
func (p Policy) Do(ctx context.Context, call func() error) error {
	classify := p.Classify
	if classify == nil {
		classify = KindOf
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleep(p.delay(classify(err), attempt))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = call(); err == nil {
			return nil
		}
		if !classify(err).Retryable() {
			return err
		}
	}
	return err
}

// delay returns the backoff before the given (1-based) retry attempt,
// doubling per attempt from a kind-specific base.
func (p Policy) delay(kind FailureKind, attempt int) time.Duration {
	base := p.BaseDelay
	if kind == FailureRateLimit && p.RateLimitDelay > 0 {
		base = p.RateLimitDelay
	}
	return base << (attempt - 1)
}
