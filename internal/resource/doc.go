// Package resource composes the protection layers around a cached
// upstream resource: rate limiting, caching, circuit breaking, and
// retry. A Handler answers reads for one resource type; a hit is served
// from the cache, and only a miss reaches the upstream fetch, which
// runs under the circuit breaker with retries inside.
//
// This ordering means a cached value remains readable while the circuit
// is open; only the miss path is rejected.
package resource
