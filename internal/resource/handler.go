package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/rescache/internal/cache"
	"github.com/vyrodovalexey/rescache/internal/circuitbreaker"
	"github.com/vyrodovalexey/rescache/internal/observability"
	"github.com/vyrodovalexey/rescache/internal/ratelimit"
	"github.com/vyrodovalexey/rescache/internal/retry"
)

// handlerTracerName is the OpenTelemetry tracer name for handler operations.
const handlerTracerName = "rescache/resource"

// ErrInvalidHandler indicates an invalid handler configuration.
var ErrInvalidHandler = errors.New("invalid handler configuration")

// HandlerConfig configures a protected resource handler.
type HandlerConfig[V any] struct {
	// Name is the resource type name, used as the rate limit key, the
	// retry operation label, and the breaker name.
	Name string

	// Cache is the backing resource cache. Required.
	Cache *cache.ResourceCache[V]

	// Fetch is the upstream operation invoked on cache miss. Required.
	Fetch cache.FetchFunc[V]

	// Limiter gates every read, hits included. Nil disables limiting.
	Limiter ratelimit.Limiter

	// Cost is the token cost per read. Defaults to 1.
	Cost float64

	// Breaker gates the miss path. Nil disables circuit breaking.
	Breaker *circuitbreaker.Breaker

	// Retry is the retry policy for the upstream fetch. Nil uses the
	// default policy.
	Retry *retry.Policy

	// Logger defaults to a nop logger.
	Logger observability.Logger
}

// Handler serves reads for one resource type through the full protection
// stack. Layer order per read: rate limiter, cache lookup, then for
// misses only, circuit breaker around the retried upstream fetch.
type Handler[V any] struct {
	name    string
	cache   *cache.ResourceCache[V]
	fetch   cache.FetchFunc[V]
	limiter ratelimit.Limiter
	cost    float64
	breaker *circuitbreaker.Breaker
	policy  *retry.Policy
	logger  observability.Logger
}

// NewHandler creates a protected handler.
func NewHandler[V any](cfg HandlerConfig[V]) (*Handler[V], error) {
	if cfg.Name == "" {
		return nil, errors.Join(ErrInvalidHandler, errors.New("name is required"))
	}
	if cfg.Cache == nil {
		return nil, errors.Join(ErrInvalidHandler, errors.New("cache is required"))
	}
	if cfg.Fetch == nil {
		return nil, errors.Join(ErrInvalidHandler, errors.New("fetch is required"))
	}
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	return &Handler[V]{
		name:    cfg.Name,
		cache:   cfg.Cache,
		fetch:   cfg.Fetch,
		limiter: cfg.Limiter,
		cost:    cfg.Cost,
		breaker: cfg.Breaker,
		policy:  cfg.Retry,
		logger:  cfg.Logger,
	}, nil
}

// Name returns the resource type name.
func (h *Handler[V]) Name() string {
	return h.name
}

// Get returns the value for key through the protection stack.
//
// The rate limiter is consulted first; a rejection returns ErrRateLimited
// without touching any other layer. A cache hit is then served directly,
// even while the circuit is open. On a miss the circuit breaker decides
// whether the upstream may be attempted: rejection returns ErrCircuitOpen
// without invoking the fetch, otherwise the fetch runs under the retry
// policy and a final failure is returned as *UpstreamError.
func (h *Handler[V]) Get(ctx context.Context, key string) (V, error) {
	return h.GetWithTTL(ctx, key, 0)
}

// GetWithTTL is Get with a per-call TTL override for values fetched by
// this call. A non-positive ttl uses the cache default.
func (h *Handler[V]) GetWithTTL(ctx context.Context, key string, ttl time.Duration) (V, error) {
	var zero V

	ctx = observability.ContextWithInvocationID(ctx, uuid.NewString())

	ctx, span := otel.Tracer(handlerTracerName).Start(ctx, "resource.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("resource.name", h.name),
			attribute.String("resource.key", key),
		),
	)
	defer span.End()

	if h.limiter != nil {
		if res := h.limiter.AllowN(h.name, h.cost); !res.Allowed {
			span.SetAttributes(attribute.String("resource.outcome", "rate_limited"))
			h.logger.WithContext(ctx).Debug("read rejected by rate limiter",
				observability.String("resource", h.name),
				observability.String("key", key),
				observability.Duration("retry_after", res.RetryAfter))
			return zero, fmt.Errorf("%w: %s", ErrRateLimited, h.name)
		}
	}

	value, err := h.cache.GetOrFetch(ctx, key, ttl, h.protectedFetch)
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			span.SetAttributes(attribute.String("resource.outcome", "circuit_open"))
			return zero, fmt.Errorf("%w: %s", ErrCircuitOpen, h.name)
		}
		span.SetAttributes(attribute.String("resource.outcome", "upstream_error"))
		return zero, &UpstreamError{Resource: h.name, Key: key, Err: err}
	}

	return value, nil
}

// protectedFetch runs the upstream fetch under the circuit breaker with
// the retry policy inside, so one fully retried operation counts as a
// single breaker outcome.
func (h *Handler[V]) protectedFetch(ctx context.Context) (V, error) {
	attempt := func(ctx context.Context) (V, error) {
		return retry.Do(ctx, h.policy, h.name, h.fetch)
	}

	if h.breaker == nil {
		return attempt(ctx)
	}
	return circuitbreaker.Do(ctx, h.breaker, attempt)
}

// Invalidate removes the cached entry for key.
func (h *Handler[V]) Invalidate(ctx context.Context, key string) {
	h.cache.Invalidate(ctx, key)
}

// InvalidateAll removes every cached entry for this resource.
func (h *Handler[V]) InvalidateAll() {
	h.cache.InvalidateAll()
}

// Stats returns the cache statistics for this resource.
func (h *Handler[V]) Stats() cache.CacheStats {
	return h.cache.Stats()
}

// BreakerState returns the circuit breaker state, or StateClosed when no
// breaker is configured.
func (h *Handler[V]) BreakerState() circuitbreaker.State {
	if h.breaker == nil {
		return circuitbreaker.StateClosed
	}
	return h.breaker.State()
}
