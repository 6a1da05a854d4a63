package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/rescache/internal/cache"
	"github.com/vyrodovalexey/rescache/internal/circuitbreaker"
	"github.com/vyrodovalexey/rescache/internal/clock"
	"github.com/vyrodovalexey/rescache/internal/observability"
	"github.com/vyrodovalexey/rescache/internal/ratelimit"
	"github.com/vyrodovalexey/rescache/internal/retry"
)

var errBackend = errors.New("backend down")

type handlerFixture struct {
	handler *Handler[string]
	clk     *clock.Fake
	breaker *circuitbreaker.Breaker
	calls   *int64

	mu    sync.Mutex
	value string
	err   error
}

func (f *handlerFixture) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *handlerFixture) succeedWith(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
	f.err = nil
}

func (f *handlerFixture) fetch(context.Context) (string, error) {
	atomic.AddInt64(f.calls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.value, nil
}

func newHandlerFixture(t *testing.T, name string, configure func(*HandlerConfig[string])) *handlerFixture {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	c, err := cache.NewResourceCache[string](cache.ResourceCacheConfig{
		Name:       name,
		DefaultTTL: 5 * time.Second,
		Clock:      clk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	f := &handlerFixture{
		clk:   clk,
		calls: new(int64),
		breaker: circuitbreaker.New(name, circuitbreaker.DefaultConfig().
			WithFailureThreshold(3).
			WithResetTimeout(10*time.Second).
			WithSuccessThreshold(2).
			WithClock(clk), nil),
	}
	f.succeedWith("fetched")

	cfg := HandlerConfig[string]{
		Name:    name,
		Cache:   c,
		Fetch:   f.fetch,
		Breaker: f.breaker,
		Retry:   retry.NoRetryPolicy(),
		Logger:  observability.NopLogger(),
	}
	if configure != nil {
		configure(&cfg)
	}

	f.handler, err = NewHandler(cfg)
	require.NoError(t, err)

	return f
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(HandlerConfig[string]{})
	assert.ErrorIs(t, err, ErrInvalidHandler)

	_, err = NewHandler(HandlerConfig[string]{Name: "pet"})
	assert.ErrorIs(t, err, ErrInvalidHandler)
}

func TestHandler_Get_MissThenHit(t *testing.T) {
	f := newHandlerFixture(t, "miss-hit", nil)

	value, err := f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "fetched", value)
	assert.Equal(t, int64(1), atomic.LoadInt64(f.calls))

	value, err = f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "fetched", value)
	assert.Equal(t, int64(1), atomic.LoadInt64(f.calls))
}

func TestHandler_Get_UpstreamError(t *testing.T) {
	f := newHandlerFixture(t, "upstream-error", nil)
	f.failWith(errBackend)

	_, err := f.handler.Get(context.Background(), "k")

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "upstream-error", upstreamErr.Resource)
	assert.Equal(t, "k", upstreamErr.Key)
	assert.ErrorIs(t, err, errBackend)
}

func TestHandler_Get_RetriesBeforeFailing(t *testing.T) {
	f := newHandlerFixture(t, "retries", func(cfg *HandlerConfig[string]) {
		cfg.Retry = &retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			BackoffFactor:  1,
		}
	})
	f.failWith(errBackend)

	_, err := f.handler.Get(context.Background(), "k")

	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, int64(3), atomic.LoadInt64(f.calls))

	// The fully retried operation counts as one breaker failure.
	assert.Equal(t, 1, f.breaker.Stats().Failures)
}

func TestHandler_Get_CircuitOpensAfterFailures(t *testing.T) {
	f := newHandlerFixture(t, "opens", nil)
	f.failWith(errBackend)

	for i := 0; i < 3; i++ {
		_, err := f.handler.Get(context.Background(), "k")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, f.handler.BreakerState())

	// The next miss is rejected without touching the upstream.
	before := atomic.LoadInt64(f.calls)
	_, err := f.handler.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt64(f.calls))
}

func TestHandler_Get_HitServedWhileCircuitOpen(t *testing.T) {
	f := newHandlerFixture(t, "hit-while-open", nil)

	// Populate the cache for one key.
	_, err := f.handler.Get(context.Background(), "cached")
	require.NoError(t, err)

	// Open the circuit with misses on another key.
	f.failWith(errBackend)
	for i := 0; i < 3; i++ {
		_, _ = f.handler.Get(context.Background(), "failing")
	}
	require.Equal(t, circuitbreaker.StateOpen, f.handler.BreakerState())

	// The cached key is still readable; only the miss path is rejected.
	value, err := f.handler.Get(context.Background(), "cached")
	assert.NoError(t, err)
	assert.Equal(t, "fetched", value)

	_, err = f.handler.Get(context.Background(), "failing")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestHandler_Get_CircuitRecovers(t *testing.T) {
	f := newHandlerFixture(t, "recovers", nil)
	f.failWith(errBackend)

	for i := 0; i < 3; i++ {
		_, _ = f.handler.Get(context.Background(), "k")
	}
	require.Equal(t, circuitbreaker.StateOpen, f.handler.BreakerState())

	f.succeedWith("recovered")
	f.clk.Advance(10 * time.Second)

	// Two probe successes close the circuit again. Invalidate between
	// reads so each probe reaches the upstream.
	value, err := f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, circuitbreaker.StateHalfOpen, f.handler.BreakerState())

	f.handler.Invalidate(context.Background(), "k")
	_, err = f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, f.handler.BreakerState())
}

func TestHandler_Get_RateLimited(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := ratelimit.NewKeyedLimiter(2, 0.001, ratelimit.WithClock(clk))
	t.Cleanup(func() { _ = limiter.Close() })

	f := newHandlerFixture(t, "limited", func(cfg *HandlerConfig[string]) {
		cfg.Limiter = limiter
	})

	_, err := f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	_, err = f.handler.Get(context.Background(), "k")
	require.NoError(t, err)

	// The third read exceeds the bucket; even the cache is not consulted.
	_, err = f.handler.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int64(1), atomic.LoadInt64(f.calls))
}

func TestHandler_GetWithTTL(t *testing.T) {
	f := newHandlerFixture(t, "ttl-override", nil)

	_, err := f.handler.GetWithTTL(context.Background(), "k", 2*time.Second)
	require.NoError(t, err)

	// Expired under the override even though the default TTL is 5s.
	f.clk.Advance(3 * time.Second)
	_, err = f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(f.calls))
}

func TestHandler_Get_NoBreaker(t *testing.T) {
	f := newHandlerFixture(t, "no-breaker", func(cfg *HandlerConfig[string]) {
		cfg.Breaker = nil
	})

	value, err := f.handler.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "fetched", value)
	assert.Equal(t, circuitbreaker.StateClosed, f.handler.BreakerState())
}

func TestHandler_InvalidateAll(t *testing.T) {
	f := newHandlerFixture(t, "invalidate-all", nil)

	_, _ = f.handler.Get(context.Background(), "a")
	_, _ = f.handler.Get(context.Background(), "b")

	f.handler.InvalidateAll()

	_, _ = f.handler.Get(context.Background(), "a")
	assert.Equal(t, int64(3), atomic.LoadInt64(f.calls))
}

func TestHandler_Stats(t *testing.T) {
	f := newHandlerFixture(t, "stats", nil)

	_, _ = f.handler.Get(context.Background(), "k")
	_, _ = f.handler.Get(context.Background(), "k")

	stats := f.handler.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}

func TestHandler_FetchSeesInvocationID(t *testing.T) {
	var seen string

	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c, err := cache.NewResourceCache[string](cache.ResourceCacheConfig{
		Name:       "invocation",
		DefaultTTL: time.Minute,
		Clock:      clk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	h, err := NewHandler(HandlerConfig[string]{
		Name:  "invocation",
		Cache: c,
		Fetch: func(ctx context.Context) (string, error) {
			seen = observability.InvocationIDFromContext(ctx)
			return "v", nil
		},
	})
	require.NoError(t, err)

	_, err = h.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
}

func TestUpstreamError_Unwrap(t *testing.T) {
	err := &UpstreamError{Resource: "pet", Key: "1", Err: errBackend}

	assert.ErrorIs(t, err, errBackend)
	assert.Contains(t, err.Error(), "pet/1")
}
