package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/rescache/internal/observability"
)

// Registry errors. All are programmer or configuration errors, not expected
// at steady-state runtime; AlreadyRegistered at startup should abort
// initialization.
var (
	// ErrAlreadyRegistered indicates a duplicate resource name.
	ErrAlreadyRegistered = errors.New("resource cache already registered")

	// ErrNotFound indicates the named cache is not registered.
	ErrNotFound = errors.New("resource cache not found")

	// ErrTypeMismatch indicates the registered cache holds a different
	// value type than the one requested.
	ErrTypeMismatch = errors.New("resource cache type mismatch")
)

// Handle is the type-erased capability interface over a resource cache.
// It exposes only the operations that do not depend on the value type.
type Handle interface {
	Name() string
	Stats() CacheStats
	InvalidateAll()
	Len() int
	Close() error
}

// Registry is a thread-safe collection of named resource caches. It is an
// explicitly constructed, dependency-injected shared instance, never a
// hidden process global, so tests can build isolated registries.
type Registry struct {
	logger observability.Logger

	mu     sync.RWMutex
	caches map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry(logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{
		logger: logger,
		caches: make(map[string]Handle),
	}
}

// Register creates a resource cache from cfg and adds it to the registry.
// Registering a name twice fails with ErrAlreadyRegistered. The concrete
// value type is fixed here; later typed lookups are checked against it.
func Register[V any](r *Registry, cfg ResourceCacheConfig) (*ResourceCache[V], error) {
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}

	rc, err := NewResourceCache[V](cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caches[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, cfg.Name)
	}
	r.caches[cfg.Name] = rc

	r.logger.Info("registered resource cache",
		observability.String("resource", cfg.Name))

	return rc, nil
}

// Lookup recovers the concrete typed cache for name. A missing name fails
// with ErrNotFound; a name registered with a different value type fails
// with ErrTypeMismatch.
func Lookup[V any](r *Registry, name string) (*ResourceCache[V], error) {
	r.mu.RLock()
	handle, exists := r.caches[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	rc, ok := handle.(*ResourceCache[V])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, name)
	}

	return rc, nil
}

// With provides scoped, type-checked access to the named cache.
func With[V any](r *Registry, name string, fn func(*ResourceCache[V]) error) error {
	rc, err := Lookup[V](r, name)
	if err != nil {
		return err
	}
	return fn(rc)
}

// Get returns the type-erased handle for name.
func (r *Registry) Get(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.caches[name]
	return handle, ok
}

// Names returns the registered resource names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	return names
}

// AggregateStats returns statistics for every registered cache, keyed by
// resource name.
func (r *Registry) AggregateStats() map[string]CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]CacheStats, len(r.caches))
	for name, handle := range r.caches {
		stats[name] = handle.Stats()
	}
	return stats
}

// InvalidateAll clears every registered cache.
func (r *Registry) InvalidateAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, handle := range r.caches {
		handle.InvalidateAll()
	}
}

// Count returns the number of registered caches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caches)
}

// Close stops the background sweepers of all registered caches.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, handle := range r.caches {
		if err := handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
