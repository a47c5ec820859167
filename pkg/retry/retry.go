package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrMaxAttemptsExceeded is returned when every attempt has failed.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Policy defines retry behavior: attempt count, base delay and growth.
// One policy type serves every call site that needs retries; call sites
// configure it instead of hand-rolling their own loops.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on any single delay
	Multiplier  float64       // backoff growth factor
	Jitter      float64       // 0..1 fraction of random delay spread
}

// DefaultPolicy is a sensible default for transient failures.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Multiplier:  2.0,
	Jitter:      0.1,
}

// ProviderPolicy is tuned for upstream price-data providers, which rate
// limit aggressively.
var ProviderPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	Multiplier:  2.0,
	Jitter:      0.2,
}

// WithMaxAttempts returns a copy of the policy with a custom attempt count.
func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// WithBaseDelay returns a copy of the policy with a custom base delay.
func (p Policy) WithBaseDelay(d time.Duration) Policy {
	p.BaseDelay = d
	return p
}

// Delay computes the backoff before retry attempt n (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread/2 + rand.Float64()*spread)
	}
	return d
}

// Do runs fn under the policy, retrying while isRetryable approves the
// error. A nil isRetryable retries every error. Context cancellation stops
// the loop immediately.
func Do(ctx context.Context, policy Policy, fn func() error, isRetryable func(error) bool) error {
	var lastErr error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay(attempt - 1)):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
	}

	return errors.Join(ErrMaxAttemptsExceeded, lastErr)
}
