package circuitbreaker

import (
	"sync"

	"github.com/vyrodovalexey/rescache/internal/observability"
)

// Registry manages one circuit breaker per resource name.
type Registry struct {
	breakers sync.Map
	config   *Config
	logger   observability.Logger
}

// NewRegistry creates a circuit breaker registry. The config is used as
// the default for breakers created through GetOrCreate.
func NewRegistry(config *Config, logger observability.Logger) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Registry{
		config: config,
		logger: logger,
	}
}

// Get returns a circuit breaker by name, or nil if not found.
func (r *Registry) Get(name string) *Breaker {
	value, ok := r.breakers.Load(name)
	if !ok {
		return nil
	}
	return value.(*Breaker)
}

// GetOrCreate returns an existing circuit breaker or creates a new one
// with the registry's default config.
func (r *Registry) GetOrCreate(name string) *Breaker {
	return r.GetOrCreateWithConfig(name, r.config)
}

// GetOrCreateWithConfig returns an existing circuit breaker or creates a
// new one with the given config.
func (r *Registry) GetOrCreateWithConfig(name string, config *Config) *Breaker {
	if value, ok := r.breakers.Load(name); ok {
		return value.(*Breaker)
	}

	b := New(name, config, r.logger)

	// LoadOrStore handles concurrent creation of the same name.
	actual, loaded := r.breakers.LoadOrStore(name, b)
	if loaded {
		return actual.(*Breaker)
	}

	r.logger.Debug("created circuit breaker",
		observability.String("name", name),
	)

	return b
}

// Remove removes a circuit breaker from the registry.
func (r *Registry) Remove(name string) {
	r.breakers.Delete(name)
}

// Names returns the names of all circuit breakers in the registry.
func (r *Registry) Names() []string {
	var names []string
	r.breakers.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

// ResetAll resets all circuit breakers to the closed state.
func (r *Registry) ResetAll() {
	r.breakers.Range(func(_, value any) bool {
		value.(*Breaker).Reset()
		return true
	})
	r.logger.Info("reset all circuit breakers")
}

// Stats returns statistics for all circuit breakers keyed by name.
func (r *Registry) Stats() map[string]Stats {
	stats := make(map[string]Stats)
	r.breakers.Range(func(key, value any) bool {
		stats[key.(string)] = value.(*Breaker).Stats()
		return true
	})
	return stats
}

// Count returns the number of circuit breakers in the registry.
func (r *Registry) Count() int {
	count := 0
	r.breakers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
