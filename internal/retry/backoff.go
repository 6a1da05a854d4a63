package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff defines the interface for backoff strategies.
type Backoff interface {
	// Next returns the duration to wait before the next retry attempt.
	Next(attempt int) time.Duration

	// Reset resets the backoff state.
	Reset()
}

// ExponentialBackoff implements exponential backoff with optional
// symmetric jitter: initial * factor^attempt, capped at max, then
// perturbed by up to plus or minus jitter*backoff.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	jitter  float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewExponentialBackoff creates a new exponential backoff.
func NewExponentialBackoff(initial, max time.Duration, factor, jitter float64) *ExponentialBackoff {
	return &ExponentialBackoff{
		initial: initial,
		max:     max,
		factor:  factor,
		jitter:  jitter,
		//nolint:gosec // G404: jitter for retry timing is not security-sensitive
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next implements Backoff.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := float64(b.initial) * math.Pow(b.factor, float64(attempt))

	if backoff > float64(b.max) {
		backoff = float64(b.max)
	}

	if b.jitter > 0 {
		b.mu.Lock()
		jitterRange := backoff * b.jitter
		backoff += (b.rand.Float64() * 2 * jitterRange) - jitterRange
		b.mu.Unlock()
	}

	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// Reset implements Backoff.
func (b *ExponentialBackoff) Reset() {
	// ExponentialBackoff is stateless, nothing to reset
}

// ConstantBackoff implements constant backoff.
type ConstantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff creates a new constant backoff.
func NewConstantBackoff(interval time.Duration) *ConstantBackoff {
	return &ConstantBackoff{interval: interval}
}

// Next implements Backoff.
func (b *ConstantBackoff) Next(_ int) time.Duration {
	return b.interval
}

// Reset implements Backoff.
func (b *ConstantBackoff) Reset() {
	// ConstantBackoff is stateless, nothing to reset
}
