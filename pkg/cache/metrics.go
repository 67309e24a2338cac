package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fingerprint lookups served from the store.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farescout_cache_hits_total",
			Help: "Total number of day-result cache hits",
		},
	)

	// CacheMisses tracks lookups that found no live entry.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farescout_cache_misses_total",
			Help: "Total number of day-result cache misses",
		},
	)

	// CacheEvictions tracks removed entries by reason.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farescout_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"reason"}, // "capacity", "expired", "sweep"
	)

	// CacheEntries tracks the current number of live entries.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farescout_cache_entries",
			Help: "Current number of entries in the day-result cache",
		},
	)
)
