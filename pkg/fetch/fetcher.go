// Package fetch wraps one upstream best-price call per day behind the
// global admission queue and the day-result cache.
package fetch

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/farescout/farescout/pkg/cache"
	"github.com/farescout/farescout/pkg/fare"
	"github.com/farescout/farescout/pkg/queue"
)

var fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farescout_fetches_total",
	Help: "Total day fetches by source and result kind",
}, []string{"source", "kind"}) // source: "cache", "upstream"

// Outcome is the result of a single-day fetch. ServedFromCache is false
// for any path that consulted the admission queue, even when that call
// errored; it drives downstream pacing estimates, not correctness.
type Outcome struct {
	Result          fare.DayResult
	ServedFromCache bool
}

// Fetcher resolves one day's best price, preferring the cache.
type Fetcher struct {
	store    *cache.Store
	queue    *queue.Queue
	upstream Upstream
	logger   zerolog.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(store *cache.Store, q *queue.Queue, upstream Upstream, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		store:    store,
		queue:    q,
		upstream: upstream,
		logger:   logger,
	}
}

// Fetch returns the day result for a query. Cache hits re-apply the
// requested time-of-day filters to the cached unfiltered interval set;
// misses go through the admission queue, store the unfiltered set, and
// then apply the filters.
func (f *Fetcher) Fetch(ctx context.Context, q fare.Query) Outcome {
	fingerprint := q.Fingerprint()

	if cached, ok := f.store.Get(fingerprint); ok {
		fetchesTotal.WithLabelValues("cache", string(cached.Kind)).Inc()
		return Outcome{
			Result:          f.refilter(cached, q),
			ServedFromCache: true,
		}
	}

	result := f.fetchUpstream(ctx, q, fingerprint)
	fetchesTotal.WithLabelValues("upstream", string(result.Kind)).Inc()
	return Outcome{Result: result, ServedFromCache: false}
}

// refilter recomputes the cheapest qualifying interval from a cached
// payload. Cached error placeholders are served as-is; everything else is
// recomputed from the unfiltered interval superset, so one cached day
// serves every time-filter variant.
func (f *Fetcher) refilter(cached fare.DayResult, q fare.Query) fare.DayResult {
	if cached.Kind == fare.KindError {
		return cached
	}
	return fare.CheapestWithin(cached.Intervals, q.EarliestDeparture, q.LatestArrival)
}

func (f *Fetcher) fetchUpstream(ctx context.Context, q fare.Query, fingerprint string) fare.DayResult {
	value, err := f.queue.Submit(ctx, fingerprint, func(callCtx context.Context) (any, error) {
		return f.upstream.QueryBestPrice(callCtx, q)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Submitter cancelled; the day is recorded as cancelled, not
			// as an upstream failure.
			return fare.CancelledResult()
		}
		f.logger.Warn().
			Err(err).
			Str("fingerprint", fingerprint).
			Str("error_class", string(ClassOf(err))).
			Msg("Upstream fetch failed")

		result := fare.ErrorResult(err.Error())
		f.store.Put(fingerprint, result, f.store.TTLFor(result))
		return result
	}

	raw := value.(*RawResponse)

	if raw.Status == StatusNoPrice {
		result := fare.NoPriceResult()
		f.store.Put(fingerprint, result, f.store.TTLFor(result))
		return result
	}

	intervals, err := ParseIntervals(raw)
	if err != nil {
		f.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Malformed upstream response")
		result := fare.ErrorResult(err.Error())
		f.store.Put(fingerprint, result, f.store.TTLFor(result))
		return result
	}

	// The cached payload always stores the unfiltered superset; display
	// filters are applied per read.
	full := fare.CheapestWithin(intervals, nil, nil)
	f.store.Put(fingerprint, full, f.store.TTLFor(full))

	return fare.CheapestWithin(intervals, q.EarliestDeparture, q.LatestArrival)
}
