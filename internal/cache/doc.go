// Package cache provides the generic resource caching layer.
//
// The package implements three pieces:
//
//   - Store, a concurrent key to entry map with TTL-based lazy expiry,
//     hit/miss/eviction accounting, and an optional background sweep.
//   - ResourceCache, a per-resource-type wrapper providing GetOrFetch
//     semantics with a default TTL, per-call overrides, and optional
//     single-flight request coalescing.
//   - Registry, a process-wide collection of named resource caches with
//     typed lookup and aggregate statistics.
//
// Expiry is lazy: a read at or past an entry's deadline removes the entry
// and counts as a miss plus an eviction. The background sweep is purely a
// memory-bound optimization and is not required for correctness.
//
// By default GetOrFetch does not guarantee at-most-one-fetch-in-flight per
// key: two concurrent misses for the same key may both invoke the fetch
// function. This is a deliberate latency trade-off; enable coalescing via
// ResourceCacheConfig.Coalesce to share one fetch among concurrent missers.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package cache
