// Package ratelimit provides token bucket rate limiting for resource
// fetches. Buckets support fractional costs and are keyed per resource.
package ratelimit

import (
	"io"
	"sync"
	"time"

	"github.com/vyrodovalexey/rescache/internal/clock"
	"github.com/vyrodovalexey/rescache/internal/observability"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request with cost 1 is allowed for the given key.
	Allow(key string) *Result

	// AllowN checks if a request with the given cost is allowed.
	AllowN(key string, cost float64) *Result

	// Reset clears the rate limit state for the given key.
	Reset(key string)
}

// Result represents the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Remaining is the number of tokens remaining in the bucket.
	Remaining float64

	// RetryAfter is the duration to wait before retrying (when not allowed).
	RetryAfter time.Duration
}

// Ensure KeyedLimiter implements io.Closer for cleanup goroutine shutdown.
var _ io.Closer = (*KeyedLimiter)(nil)

// KeyedLimiter maintains one token bucket per key. Idle buckets are
// removed by a background cleanup goroutine; call Close when done.
type KeyedLimiter struct {
	capacity float64
	rate     float64
	clk      clock.Clock
	logger   observability.Logger

	buckets sync.Map

	cleanupInterval time.Duration
	bucketTTL       time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

// KeyedLimiterOption configures a KeyedLimiter.
type KeyedLimiterOption func(*KeyedLimiter)

// WithClock sets the time source.
func WithClock(clk clock.Clock) KeyedLimiterOption {
	return func(l *KeyedLimiter) {
		l.clk = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) KeyedLimiterOption {
	return func(l *KeyedLimiter) {
		l.logger = logger
	}
}

// WithCleanup sets the cleanup interval and idle bucket TTL.
func WithCleanup(interval, ttl time.Duration) KeyedLimiterOption {
	return func(l *KeyedLimiter) {
		l.cleanupInterval = interval
		l.bucketTTL = ttl
	}
}

// NewKeyedLimiter creates a limiter with the given bucket capacity and
// refill rate in tokens per second. Every key gets its own full bucket
// on first use.
func NewKeyedLimiter(capacity, rate float64, opts ...KeyedLimiterOption) *KeyedLimiter {
	l := &KeyedLimiter{
		capacity:        capacity,
		rate:            rate,
		clk:             clock.System(),
		logger:          observability.NopLogger(),
		cleanupInterval: 5 * time.Minute,
		bucketTTL:       10 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	go l.cleanupLoop()

	return l
}

// Allow implements Limiter.
func (l *KeyedLimiter) Allow(key string) *Result {
	return l.AllowN(key, 1)
}

// AllowN implements Limiter.
func (l *KeyedLimiter) AllowN(key string, cost float64) *Result {
	value, _ := l.buckets.LoadOrStore(key, NewTokenBucket(l.capacity, l.rate, l.clk))
	b := value.(*TokenBucket)

	allowed := b.TryAcquire(cost)
	RecordRequest(key, allowed)

	res := &Result{
		Allowed:   allowed,
		Remaining: b.Tokens(),
	}
	if !allowed {
		res.RetryAfter = b.RetryAfter(cost)
		l.logger.Debug("rate limit exceeded",
			observability.String("key", key),
			observability.Float64("cost", cost),
			observability.Duration("retry_after", res.RetryAfter),
		)
	}

	return res
}

// Reset implements Limiter.
func (l *KeyedLimiter) Reset(key string) {
	l.buckets.Delete(key)
}

// Close stops the background cleanup goroutine. Safe to call multiple
// times.
func (l *KeyedLimiter) Close() error {
	l.cleanupOnce.Do(func() {
		close(l.stopCleanup)
	})
	return nil
}

// cleanupLoop periodically removes buckets that have been idle longer
// than the bucket TTL.
func (l *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(l.bucketTTL)
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup removes buckets idle for longer than maxAge.
func (l *KeyedLimiter) cleanup(maxAge time.Duration) {
	now := l.clk.Now()

	l.buckets.Range(func(key, value any) bool {
		b := value.(*TokenBucket)
		if now.Sub(b.lastAccess()) > maxAge {
			l.buckets.Delete(key)
		}
		return true
	})
}

// NoopLimiter is a rate limiter that always allows requests.
type NoopLimiter struct{}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(key string) *Result {
	return &Result{Allowed: true}
}

// AllowN implements Limiter.
func (l *NoopLimiter) AllowN(key string, cost float64) *Result {
	return &Result{Allowed: true}
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(key string) {}
