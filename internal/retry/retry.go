package retry

import (
	"context"
	"time"

	"github.com/vyrodovalexey/rescache/internal/observability"
)

// Default retry configuration constants.
const (
	// DefaultMaxAttempts is the default total number of invocations.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the default backoff before the first retry.
	DefaultInitialBackoff = 100 * time.Millisecond

	// DefaultMaxBackoff is the default backoff cap.
	DefaultMaxBackoff = 10 * time.Second

	// DefaultBackoffFactor is the default exponential multiplier.
	DefaultBackoffFactor = 2.0

	// DefaultJitter is the default symmetric jitter factor (50%).
	DefaultJitter = 0.5
)

// Policy defines the retry policy configuration. It is immutable after
// construction and may be shared by reference across calls.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64

	// Jitter is the symmetric jitter factor (0.0 to 1.0). 0.5 perturbs
	// each wait by up to plus or minus 50 percent.
	Jitter float64

	// RetryOn is the list of conditions that trigger a retry. When empty,
	// every error is retried. An error matching no condition is returned
	// immediately without further attempts.
	RetryOn []Condition

	// Logger for logging retry attempts.
	Logger observability.Logger
}

// DefaultPolicy returns a Policy with default values.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		BackoffFactor:  DefaultBackoffFactor,
		Jitter:         DefaultJitter,
	}
}

// NoRetryPolicy returns a policy that performs a single attempt.
func NoRetryPolicy() *Policy {
	return &Policy{MaxAttempts: 1}
}

// normalized returns a copy of p with invalid fields replaced by defaults.
func (p *Policy) normalized() Policy {
	out := Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		BackoffFactor:  DefaultBackoffFactor,
		Jitter:         DefaultJitter,
		Logger:         observability.NopLogger(),
	}
	if p == nil {
		return out
	}

	if p.MaxAttempts >= 1 {
		out.MaxAttempts = p.MaxAttempts
	}
	if p.InitialBackoff > 0 {
		out.InitialBackoff = p.InitialBackoff
	}
	if p.MaxBackoff >= out.InitialBackoff {
		out.MaxBackoff = p.MaxBackoff
	}
	if p.BackoffFactor >= 1 {
		out.BackoffFactor = p.BackoffFactor
	}
	if p.Jitter >= 0 && p.Jitter <= 1 {
		out.Jitter = p.Jitter
	}
	out.RetryOn = p.RetryOn
	if p.Logger != nil {
		out.Logger = p.Logger
	}
	return out
}

// shouldRetry checks the policy conditions against err.
func (p *Policy) shouldRetry(err error) bool {
	if len(p.RetryOn) == 0 {
		return err != nil
	}

	for _, condition := range p.RetryOn {
		if condition.ShouldRetry(err) {
			return true
		}
	}

	return false
}

// Do executes fn under the policy. fn is invoked up to MaxAttempts times
// total; the wait between attempt n and n+1 is
// min(initial * factor^(n-1), max), perturbed by the jitter factor. Only
// errors matching a policy condition are retried; any other error returns
// immediately. When all attempts fail, the error from the last invocation
// is returned. Waits honor context cancellation.
func Do[T any](
	ctx context.Context,
	policy *Policy,
	operation string,
	fn func(context.Context) (T, error),
) (T, error) {
	p := policy.normalized()
	backoff := NewExponentialBackoff(p.InitialBackoff, p.MaxBackoff, p.BackoffFactor, p.Jitter)

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		value, err := fn(ctx)
		RecordAttempt(operation, attempt)
		if err == nil {
			RecordSuccess(operation)
			return value, nil
		}
		lastErr = err

		if !p.shouldRetry(err) {
			p.Logger.Debug("error not retryable",
				observability.String("operation", operation),
				observability.Int("attempt", attempt),
				observability.Error(err))
			break
		}

		// Don't wait after the final attempt.
		if attempt < p.MaxAttempts {
			wait := backoff.Next(attempt - 1)
			RecordBackoff(operation, wait.Seconds())

			p.Logger.Debug("retrying operation",
				observability.String("operation", operation),
				observability.Int("attempt", attempt),
				observability.Int("max_attempts", p.MaxAttempts),
				observability.Duration("wait", wait),
				observability.Error(err))

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	RecordFailure(operation)
	return zero, lastErr
}
