// Package metrics provides the central Prometheus registry reference for
// the fare scanner. All metrics are defined in their respective packages
// (fetch, cache, queue, progress) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the scanner.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Queue Metrics (pkg/queue):
//   - farescout_queue_depth (Gauge): Calls waiting for admission
//   - farescout_queue_active_calls (Gauge): Running upstream calls (0 or 1)
//   - farescout_queue_pacing_interval_seconds (Gauge): Adaptive inter-start interval
//   - farescout_queue_requeues_total (Counter): Rate-limit requeues
//   - farescout_queue_retry_exhausted_total (Counter): Calls failed after retry ceiling
//   - farescout_queue_calls_total{outcome} (Counter): Settled calls by outcome
//   - farescout_queue_wait_seconds (Histogram): Enqueue-to-start wait
//
// Cache Metrics (pkg/cache):
//   - farescout_cache_hits_total (Counter): Day-result cache hits
//   - farescout_cache_misses_total (Counter): Day-result cache misses
//   - farescout_cache_evictions_total{reason} (Counter): Evictions by reason
//   - farescout_cache_entries (Gauge): Current entry count
//
// Upstream Metrics (pkg/fetch):
//   - farescout_upstream_requests_total{status} (Counter): Requests by HTTP status
//   - farescout_upstream_request_duration_seconds (Histogram): Request duration
//   - farescout_upstream_errors_total{class} (Counter): Errors by class
//   - farescout_fetches_total{source, kind} (Counter): Day fetches by source and result kind
//
// Progress Metrics (pkg/progress):
//   - farescout_progress_sessions (Gauge): Sessions currently tracked
//   - farescout_progress_updates_total (Counter): Progress updates written
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(farescout_cache_hits_total[5m])) /
//   (sum(rate(farescout_cache_hits_total[5m])) + sum(rate(farescout_cache_misses_total[5m])))
//
//   # Current Pacing Interval
//   farescout_queue_pacing_interval_seconds
//
//   # Upstream Error Rate
//   rate(farescout_upstream_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(farescout_upstream_request_duration_seconds_bucket[5m]))
