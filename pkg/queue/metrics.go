package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "farescout_queue_depth",
		Help: "Current number of calls waiting for admission",
	})

	queueActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "farescout_queue_active_calls",
		Help: "Number of upstream calls currently running (0 or 1)",
	})

	pacingInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "farescout_queue_pacing_interval_seconds",
		Help: "Current adaptive minimum interval between call starts",
	})

	queueRequeuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farescout_queue_requeues_total",
		Help: "Total calls requeued after a rate-limit rejection",
	})

	queueExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farescout_queue_retry_exhausted_total",
		Help: "Total calls that failed after exhausting rate-limit retries",
	})

	queueCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farescout_queue_calls_total",
		Help: "Total settled calls by outcome",
	}, []string{"outcome"}) // "succeeded", "failed", "exhausted", "closed"

	queueWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "farescout_queue_wait_seconds",
		Help:    "Time between enqueue and call start",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)
