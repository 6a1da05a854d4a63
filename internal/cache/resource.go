package cache

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/vyrodovalexey/rescache/internal/clock"
	"github.com/vyrodovalexey/rescache/internal/observability"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "rescache/cache"

// ErrInvalidConfig indicates that the resource cache configuration is invalid.
var ErrInvalidConfig = errors.New("invalid resource cache configuration")

// FetchFunc produces a value for a key on cache miss. It is the upstream
// operation source: typically an HTTP call or a database query.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// ResourceCacheConfig configures a ResourceCache.
type ResourceCacheConfig struct {
	// Name is the unique resource type name (e.g. "pet").
	Name string

	// DefaultTTL is applied to entries inserted without a per-call
	// override. Must be positive.
	DefaultTTL time.Duration

	// SweepInterval enables the optional background sweep. Zero disables.
	SweepInterval time.Duration

	// Coalesce enables single-flight request coalescing: concurrent
	// misses for the same key share one fetch invocation and its result.
	Coalesce bool

	// Clock is the time source. Defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to a nop logger.
	Logger observability.Logger
}

// ResourceCache wraps a Store with get-or-fetch semantics and TTL policy for
// one resource type. Created once at registration time and shared by
// reference for the process lifetime.
type ResourceCache[V any] struct {
	name       string
	store      *Store[V]
	defaultTTL time.Duration
	coalesce   bool
	logger     observability.Logger

	group singleflight.Group
}

// NewResourceCache creates a resource cache for one resource type.
func NewResourceCache[V any](cfg ResourceCacheConfig) (*ResourceCache[V], error) {
	if cfg.Name == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("name is required"))
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("defaultTTL must be positive"))
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	rc := &ResourceCache[V]{
		name:       cfg.Name,
		defaultTTL: cfg.DefaultTTL,
		coalesce:   cfg.Coalesce,
		logger:     cfg.Logger,
		store: NewStore[V](StoreConfig{
			Name:          cfg.Name,
			Clock:         cfg.Clock,
			Logger:        cfg.Logger,
			SweepInterval: cfg.SweepInterval,
		}),
	}

	cfg.Logger.Info("resource cache initialized",
		observability.String("resource", cfg.Name),
		observability.Duration("defaultTTL", cfg.DefaultTTL),
		observability.Bool("coalesce", cfg.Coalesce))

	return rc, nil
}

// Name returns the resource type name.
func (rc *ResourceCache[V]) Name() string {
	return rc.name
}

// Get returns a live cached value without fetching.
func (rc *ResourceCache[V]) Get(key string) (V, bool) {
	return rc.store.Get(key)
}

// GetOrFetch returns the cached value for key, or invokes fetch on miss. A
// successful fetch result is inserted with ttlOverride when positive,
// otherwise with the cache's default TTL. Fetch failures are never cached;
// the error is propagated unchanged.
func (rc *ResourceCache[V]) GetOrFetch(
	ctx context.Context,
	key string,
	ttlOverride time.Duration,
	fetch FetchFunc[V],
) (V, error) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.GetOrFetch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.resource", rc.name),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	if value, ok := rc.store.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return value, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	if rc.coalesce {
		return rc.fetchCoalesced(ctx, key, ttlOverride, fetch)
	}
	return rc.fetchAndStore(ctx, key, ttlOverride, fetch)
}

// fetchCoalesced shares one in-flight fetch per key among concurrent
// missers. Followers re-check the store first so a value inserted while
// they were queued is served without another fetch.
func (rc *ResourceCache[V]) fetchCoalesced(
	ctx context.Context,
	key string,
	ttlOverride time.Duration,
	fetch FetchFunc[V],
) (V, error) {
	result, err, shared := rc.group.Do(key, func() (interface{}, error) {
		if value, ok := rc.store.Get(key); ok {
			return value, nil
		}
		return rc.fetchAndStore(ctx, key, ttlOverride, fetch)
	})
	if err != nil {
		var zero V
		return zero, err
	}

	if shared {
		rc.logger.Debug("coalesced fetch shared",
			observability.String("resource", rc.name),
			observability.String("key", key))
	}

	return result.(V), nil
}

// fetchAndStore invokes the upstream fetch and caches a successful result.
func (rc *ResourceCache[V]) fetchAndStore(
	ctx context.Context,
	key string,
	ttlOverride time.Duration,
	fetch FetchFunc[V],
) (V, error) {
	start := time.Now()
	value, err := fetch(ctx)
	elapsed := time.Since(start)

	if err != nil {
		GetCacheMetrics().fetchesTotal.WithLabelValues(rc.name, "failure").Inc()
		GetCacheMetrics().fetchDuration.WithLabelValues(rc.name, "failure").
			Observe(elapsed.Seconds())
		rc.logger.WithContext(ctx).Warn("upstream fetch failed",
			observability.String("resource", rc.name),
			observability.String("key", key),
			observability.Duration("elapsed", elapsed),
			observability.Error(err))
		var zero V
		return zero, err
	}

	GetCacheMetrics().fetchesTotal.WithLabelValues(rc.name, "success").Inc()
	GetCacheMetrics().fetchDuration.WithLabelValues(rc.name, "success").
		Observe(elapsed.Seconds())

	ttl := ttlOverride
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	rc.store.Insert(key, value, ttl)

	return value, nil
}

// Invalidate removes an entry regardless of TTL, for use after writes that
// change the underlying resource. Invalidating an absent key is a no-op.
func (rc *ResourceCache[V]) Invalidate(ctx context.Context, key string) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Invalidate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.resource", rc.name),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	rc.store.Remove(key)

	rc.logger.Debug("cache invalidated",
		observability.String("resource", rc.name),
		observability.String("key", key))
}

// InvalidateAll removes every entry.
func (rc *ResourceCache[V]) InvalidateAll() {
	rc.store.Clear()

	rc.logger.Debug("cache cleared",
		observability.String("resource", rc.name))
}

// Stats returns the hit/miss/eviction counters and current size.
func (rc *ResourceCache[V]) Stats() CacheStats {
	return rc.store.Stats()
}

// Len returns the current number of entries.
func (rc *ResourceCache[V]) Len() int {
	return rc.store.Len()
}

// Close stops the background sweep goroutine, if any.
func (rc *ResourceCache[V]) Close() error {
	return rc.store.Close()
}
