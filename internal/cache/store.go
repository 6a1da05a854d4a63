package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/rescache/internal/clock"
	"github.com/vyrodovalexey/rescache/internal/observability"
)

// CacheStats contains cache statistics.
type CacheStats struct {
	// Hits is the number of cache hits.
	Hits int64

	// Misses is the number of cache misses.
	Misses int64

	// Evictions is the number of entries removed by lazy expiry or sweep.
	Evictions int64

	// Size is the current number of live entries.
	Size int64
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// entry holds one cached value with its expiry metadata.
type entry[V any] struct {
	value       V
	insertedAt  time.Time
	expiresAt   time.Time
	accessCount uint64
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Name is the resource type name used in logs and metric labels.
	Name string

	// Clock is the time source. Defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to a nop logger.
	Logger observability.Logger

	// SweepInterval enables a background goroutine that periodically
	// removes expired entries. Zero disables the sweep.
	SweepInterval time.Duration
}

// Store is a concurrent key to entry map with TTL-based lazy expiry.
// Every Get increments either the hit or the miss counter exactly once;
// every lazy expiry increments the eviction counter exactly once.
type Store[V any] struct {
	name   string
	clock  clock.Clock
	logger observability.Logger

	mu      sync.RWMutex
	entries map[string]*entry[V]

	hits      int64
	misses    int64
	evictions int64

	// stopCh signals the sweep goroutine to stop.
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewStore creates a new entry store. If cfg.SweepInterval is positive, a
// background sweep goroutine is started; call Close to stop it.
func NewStore[V any](cfg StoreConfig) *Store[V] {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	s := &Store[V]{
		name:    cfg.Name,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		entries: make(map[string]*entry[V]),
		stopCh:  make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go s.sweepLoop(cfg.SweepInterval)
	}

	return s
}

// Get retrieves a live value. An entry whose deadline has passed at the
// time of the check is removed and reported as a miss plus an eviction.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V

	s.mu.Lock()
	e, exists := s.entries[key]
	if !exists {
		s.mu.Unlock()
		atomic.AddInt64(&s.misses, 1)
		GetCacheMetrics().missesTotal.WithLabelValues(s.name).Inc()
		return zero, false
	}

	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		s.mu.Unlock()
		atomic.AddInt64(&s.misses, 1)
		atomic.AddInt64(&s.evictions, 1)
		GetCacheMetrics().missesTotal.WithLabelValues(s.name).Inc()
		GetCacheMetrics().evictionsTotal.WithLabelValues(s.name).Inc()
		s.logger.Debug("cache entry expired",
			observability.String("resource", s.name),
			observability.String("key", key))
		return zero, false
	}

	e.accessCount++
	value := e.value
	s.mu.Unlock()

	atomic.AddInt64(&s.hits, 1)
	GetCacheMetrics().hitsTotal.WithLabelValues(s.name).Inc()

	return value, true
}

// Insert stores a value with the given TTL, overwriting any existing entry
// and resetting its timestamps. A non-positive TTL is rejected.
func (s *Store[V]) Insert(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		s.logger.Warn("ignoring insert with non-positive ttl",
			observability.String("resource", s.name),
			observability.String("key", key),
			observability.Duration("ttl", ttl))
		return
	}

	now := s.clock.Now()

	s.mu.Lock()
	s.entries[key] = &entry[V]{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	size := len(s.entries)
	s.mu.Unlock()

	GetCacheMetrics().sizeGauge.WithLabelValues(s.name).Set(float64(size))

	s.logger.Debug("cache set",
		observability.String("resource", s.name),
		observability.String("key", key),
		observability.Duration("ttl", ttl),
		observability.Int("size", size))
}

// Remove deletes an entry regardless of TTL. Removing an absent key is a
// no-op.
func (s *Store[V]) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	size := len(s.entries)
	s.mu.Unlock()

	GetCacheMetrics().sizeGauge.WithLabelValues(s.name).Set(float64(size))
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry[V])
	s.mu.Unlock()

	GetCacheMetrics().sizeGauge.WithLabelValues(s.name).Set(0)
}

// Len returns the current number of entries, including any not yet swept.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a consistent snapshot of the counters.
func (s *Store[V]) Stats() CacheStats {
	s.mu.RLock()
	size := int64(len(s.entries))
	s.mu.RUnlock()

	return CacheStats{
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Evictions: atomic.LoadInt64(&s.evictions),
		Size:      size,
	}
}

// Sweep removes expired entries and returns the number removed. A sweep
// removal counts as an eviction but never as a miss.
func (s *Store[V]) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	var removed int
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	if removed > 0 {
		atomic.AddInt64(&s.evictions, int64(removed))
		GetCacheMetrics().evictionsTotal.WithLabelValues(s.name).Add(float64(removed))
		GetCacheMetrics().sizeGauge.WithLabelValues(s.name).Set(float64(size))
		s.logger.Debug("cache sweep completed",
			observability.String("resource", s.name),
			observability.Int("removed", removed))
	}

	return removed
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (s *Store[V]) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	return nil
}

// sweepLoop periodically removes expired entries until Close.
func (s *Store[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}
