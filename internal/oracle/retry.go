package oracle

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy is an explicit, first-class retry description: retry budget,
// backoff base, per-attempt bound and a retryable-error predicate.
type RetryPolicy struct {
	MaxRetries     int // retries on top of the initial attempt
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	Retryable      func(error) bool

	// Sleep is swappable so tests run without real backoff waits.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy matches the provider budget: up to 3 retries with
// doubling backoff from one second, 12s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		AttemptTimeout: 12 * time.Second,
		Retryable:      Retryable,
		Sleep:          time.Sleep,
	}
}

// Do runs fn under the policy. Each attempt gets its own timeout context;
// a timed-out attempt counts against the budget. Non-retryable errors
// propagate immediately after a single attempt.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = Retryable
	}

	var lastErr error
	delay := p.BaseDelay
	attempts := p.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Printf("oracle %s succeeded attempt=%d", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
		log.Printf("oracle %s failed attempt=%d/%d retry_in=%s err=%v", operation, attempt, attempts, delay, err)
		sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
