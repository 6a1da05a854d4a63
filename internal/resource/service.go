package resource

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/rescache/internal/cache"
	"github.com/vyrodovalexey/rescache/internal/circuitbreaker"
	"github.com/vyrodovalexey/rescache/internal/clock"
	"github.com/vyrodovalexey/rescache/internal/config"
	"github.com/vyrodovalexey/rescache/internal/observability"
	"github.com/vyrodovalexey/rescache/internal/ratelimit"
	"github.com/vyrodovalexey/rescache/internal/retry"
)

// ErrUnknownResource indicates a resource name with no configuration entry.
var ErrUnknownResource = errors.New("resource not configured")

// Service owns the shared protection infrastructure built from a Config:
// the cache registry, one circuit breaker per resource, a shared keyed
// rate limiter, and the default retry policy. Handlers are registered
// against it per resource type.
type Service struct {
	logger   observability.Logger
	clk      clock.Clock
	caches   *cache.Registry
	breakers *circuitbreaker.Registry
	limiter  ratelimit.Limiter
	policy   *retry.Policy

	resources map[string]config.ResourceConfig
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock sets the time source used by caches, breakers, and
// rate limit buckets.
func WithServiceClock(clk clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clk = clk
	}
}

// NewService builds the shared infrastructure from cfg. A nil cfg uses
// defaults; an invalid cfg aborts construction.
func NewService(cfg *config.Config, logger observability.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Service{
		logger:    logger,
		clk:       clock.System(),
		caches:    cache.NewRegistry(logger),
		resources: make(map[string]config.ResourceConfig, len(cfg.Resources)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, rc := range cfg.Resources {
		s.resources[rc.Name] = rc
	}

	s.breakers = circuitbreaker.NewRegistry(&circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout.Duration(),
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		Clock:            s.clk,
	}, logger)

	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.NewKeyedLimiter(
			cfg.RateLimit.Capacity,
			cfg.RateLimit.RefillRate,
			ratelimit.WithClock(s.clk),
			ratelimit.WithLogger(logger),
		)
	}

	s.policy = &retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff.Duration(),
		MaxBackoff:     cfg.Retry.MaxBackoff.Duration(),
		BackoffFactor:  cfg.Retry.BackoffMultiplier,
		Jitter:         cfg.Retry.Jitter,
		Logger:         logger,
	}

	logger.Info("resource service initialized",
		observability.Int("resources", len(cfg.Resources)),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled))

	return s, nil
}

// RegisterResource creates the cache and protected handler for a
// configured resource. The name must appear in the service config;
// registering the same name twice fails with ErrAlreadyRegistered.
func RegisterResource[V any](s *Service, name string, fetch cache.FetchFunc[V]) (*Handler[V], error) {
	rc, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}

	c, err := cache.Register[V](s.caches, cache.ResourceCacheConfig{
		Name:          rc.Name,
		DefaultTTL:    rc.TTL.Duration(),
		SweepInterval: rc.SweepInterval.Duration(),
		Coalesce:      rc.Coalesce,
		Clock:         s.clk,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}

	return NewHandler(HandlerConfig[V]{
		Name:    name,
		Cache:   c,
		Fetch:   fetch,
		Limiter: s.limiter,
		Breaker: s.breakers.GetOrCreate(name),
		Retry:   s.policy,
		Logger:  s.logger,
	})
}

// LookupCache recovers the typed cache for a registered resource.
func LookupCache[V any](s *Service, name string) (*cache.ResourceCache[V], error) {
	return cache.Lookup[V](s.caches, name)
}

// Caches returns the cache registry.
func (s *Service) Caches() *cache.Registry {
	return s.caches
}

// Breakers returns the circuit breaker registry.
func (s *Service) Breakers() *circuitbreaker.Registry {
	return s.breakers
}

// CacheStats returns statistics for every registered cache.
func (s *Service) CacheStats() map[string]cache.CacheStats {
	return s.caches.AggregateStats()
}

// BreakerStats returns statistics for every circuit breaker.
func (s *Service) BreakerStats() map[string]circuitbreaker.Stats {
	return s.breakers.Stats()
}

// InvalidateAll clears every registered cache.
func (s *Service) InvalidateAll() {
	s.caches.InvalidateAll()
}

// Close stops the background goroutines owned by the service.
func (s *Service) Close() error {
	var errs []error

	if closer, ok := s.limiter.(*ratelimit.KeyedLimiter); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, s.caches.Close())

	return errors.Join(errs...)
}
