// Package rescache provides TTL caching for remote resources behind a
// protection stack of rate limiting, circuit breaking, and retry with
// exponential backoff. Each resource type gets a typed cache registered
// under a unique name; reads go through a Handler that serves hits
// directly and guards the upstream fetch on misses.
package rescache

import (
	"github.com/vyrodovalexey/rescache/internal/cache"
	"github.com/vyrodovalexey/rescache/internal/circuitbreaker"
	"github.com/vyrodovalexey/rescache/internal/config"
	"github.com/vyrodovalexey/rescache/internal/observability"
	"github.com/vyrodovalexey/rescache/internal/resource"
	"github.com/vyrodovalexey/rescache/internal/retry"
)

// Config is the root configuration for the subsystem.
type Config = config.Config

// ResourceConfig configures one named resource cache.
type ResourceConfig = config.ResourceConfig

// Duration is a YAML/JSON-friendly duration wrapper.
type Duration = config.Duration

// Service owns the shared protection infrastructure.
type Service = resource.Service

// Handler serves protected reads for one resource type.
type Handler[V any] = resource.Handler[V]

// FetchFunc produces a value on cache miss.
type FetchFunc[V any] = cache.FetchFunc[V]

// CacheStats holds hit/miss/eviction counters and the current size.
type CacheStats = cache.CacheStats

// RetryPolicy configures the retry executor.
type RetryPolicy = retry.Policy

// BreakerState is a circuit breaker state.
type BreakerState = circuitbreaker.State

// Logger is the structured logging interface used throughout.
type Logger = observability.Logger

// Circuit breaker states.
const (
	StateClosed   = circuitbreaker.StateClosed
	StateOpen     = circuitbreaker.StateOpen
	StateHalfOpen = circuitbreaker.StateHalfOpen
)

// Errors returned by protected reads and registration.
var (
	ErrRateLimited       = resource.ErrRateLimited
	ErrCircuitOpen       = resource.ErrCircuitOpen
	ErrUnknownResource   = resource.ErrUnknownResource
	ErrAlreadyRegistered = cache.ErrAlreadyRegistered
	ErrNotFound          = cache.ErrNotFound
	ErrTypeMismatch      = cache.ErrTypeMismatch
)

// UpstreamError wraps a fetch that was attempted and failed.
type UpstreamError = resource.UpstreamError

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig loads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewLogger creates a zap-backed structured logger.
func NewLogger(level, format, output string) (Logger, error) {
	return observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: format,
		Output: output,
	})
}

// New builds a Service from cfg. A nil cfg uses defaults.
func New(cfg *Config, logger Logger) (*Service, error) {
	return resource.NewService(cfg, logger)
}

// Register creates the cache and protected handler for a configured
// resource type.
func Register[V any](s *Service, name string, fetch FetchFunc[V]) (*Handler[V], error) {
	return resource.RegisterResource[V](s, name, fetch)
}
