package ratelimit

import (
	"sync"
	"time"

	"github.com/vyrodovalexey/rescache/internal/clock"
)

// TokenBucket is a single token bucket. Tokens accrue continuously at a
// fixed rate up to the bucket capacity, and each acquisition consumes a
// possibly fractional cost. A bucket starts full.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	rate       float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	clk        clock.Clock
}

// NewTokenBucket creates a full token bucket with the given capacity and
// refill rate in tokens per second.
func NewTokenBucket(capacity, rate float64, clk clock.Clock) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	if clk == nil {
		clk = clock.System()
	}

	return &TokenBucket{
		capacity:   capacity,
		rate:       rate,
		tokens:     capacity,
		lastRefill: clk.Now(),
		clk:        clk,
	}
}

// TryAcquire attempts to consume cost tokens. It refills the bucket based
// on the time elapsed since the last refill, then consumes the tokens if
// enough are available. It never blocks.
func (b *TokenBucket) TryAcquire(cost float64) bool {
	if cost <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens < cost {
		return false
	}

	b.tokens -= cost
	return true
}

// refill credits tokens for the elapsed time. Caller holds b.mu.
func (b *TokenBucket) refill() {
	now := b.clk.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Tokens returns the current token count after refill.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

// Capacity returns the bucket capacity.
func (b *TokenBucket) Capacity() float64 {
	return b.capacity
}

// RetryAfter returns the duration until cost tokens will be available,
// or zero if they are available now.
func (b *TokenBucket) RetryAfter(cost float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= cost {
		return 0
	}

	needed := cost - b.tokens
	return time.Duration(needed / b.rate * float64(time.Second))
}

// lastAccess returns the time of the last refill, used for cleanup of
// idle buckets.
func (b *TokenBucket) lastAccess() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}
