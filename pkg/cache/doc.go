// Package cache provides the in-memory day-result cache.
//
// The store maps query fingerprints to priced-day results with the
// following properties:
//
// - Per-entry TTL, with a shorter TTL class for error results
// - Capacity bound with insertion-order eviction (oldest entry first)
// - Lazy expiry on read plus a periodic background sweep
// - Prometheus metrics for observability
//
// Entries are never touched on read, so eviction order is strictly the
// order of insertion, not LRU. All state is volatile and process-local;
// nothing survives a restart.
//
// # Basic Usage
//
//	store := cache.NewStore(cache.Config{
//		Capacity: 1000,
//		ResultTTL: 2 * time.Hour,
//		ErrorTTL: 5 * time.Minute,
//	})
//
//	if res, ok := store.Get(q.Fingerprint()); ok {
//		// cache hit - res holds the full unfiltered interval set
//	}
//
//	store.Put(q.Fingerprint(), result, store.TTLFor(result))
//
// # Background Sweep
//
// The sweep goroutine is started explicitly and stops when its context
// is cancelled; the store never starts timers on its own:
//
//	go store.Sweep(ctx)
//
// # Metrics
//
//	- farescout_cache_hits_total - Cache hits
//	- farescout_cache_misses_total - Cache misses
//	- farescout_cache_evictions_total{reason} - Evictions by reason
//	- farescout_cache_entries - Current entry count
package cache
