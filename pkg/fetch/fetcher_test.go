package fetch

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/farescout/farescout/pkg/cache"
	"github.com/farescout/farescout/pkg/fare"
	"github.com/farescout/farescout/pkg/queue"
)

// fakeUpstream serves scripted responses in submission order.
type fakeUpstream struct {
	calls     atomic.Int64
	responses []func() (*RawResponse, error)
}

func (f *fakeUpstream) QueryBestPrice(ctx context.Context, q fare.Query) (*RawResponse, error) {
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.responses) {
		n = len(f.responses) - 1
	}
	return f.responses[n]()
}

func okResponse() (*RawResponse, error) {
	return &RawResponse{
		Status: "ok",
		Connections: []RawConnection{
			{Price: 59.00, Transfers: 1, Legs: []RawLeg{
				{From: "Frankfurt(Main)Hbf", To: "Berlin Hbf", Line: "ICE 1601",
					Departure: time.Date(2026, 9, 14, 9, 0, 0, 0, time.Local),
					Arrival:   time.Date(2026, 9, 14, 13, 5, 0, 0, time.Local)},
			}},
			{Price: 39.00, Transfers: 0, Legs: []RawLeg{
				{From: "Frankfurt(Main)Hbf", To: "Berlin Hbf", Line: "ICE 1537",
					Departure: time.Date(2026, 9, 14, 6, 15, 0, 0, time.Local),
					Arrival:   time.Date(2026, 9, 14, 10, 30, 0, 0, time.Local)},
			}},
		},
	}, nil
}

func newTestFetcher(t *testing.T, upstream Upstream) (*Fetcher, *cache.Store) {
	t.Helper()

	store := cache.NewStore(cache.Config{}, zerolog.Nop())
	q := queue.New(queue.Config{
		Pacer: queue.PacerConfig{
			InitialInterval: time.Millisecond,
			FloorInterval:   time.Millisecond,
			CeilingInterval: 50 * time.Millisecond,
		},
		BackoffBase: time.Millisecond,
		BackoffCap:  10 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)

	return NewFetcher(store, q, upstream, zerolog.Nop()), store
}

func fetchQuery() fare.Query {
	return fare.Query{
		Origin:       fare.Station{ID: "8000105", NormalizedID: "8000105"},
		Destination:  fare.Station{ID: "8011160", NormalizedID: "8011160"},
		Date:         time.Date(2026, 9, 14, 0, 0, 0, 0, time.Local),
		AgeGroup:     "adult",
		TravelClass:  2,
		MaxTransfers: -1,
	}
}

func TestFetcher_CacheIdempotence(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){okResponse}}
	fetcher, store := newTestFetcher(t, upstream)
	q := fetchQuery()

	first := fetcher.Fetch(context.Background(), q)
	if first.ServedFromCache {
		t.Error("first fetch must not be served from cache")
	}
	if first.Result.Price != 3900 {
		t.Errorf("Price = %d, want 3900", first.Result.Price)
	}

	second := fetcher.Fetch(context.Background(), q)
	if !second.ServedFromCache {
		t.Error("second fetch must be served from cache")
	}
	if upstream.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1 (second fetch must not hit upstream)", upstream.calls.Load())
	}
	if !reflect.DeepEqual(first.Result, second.Result) {
		t.Error("identical fingerprints must yield identical results")
	}

	cached, ok := store.Get(q.Fingerprint())
	if !ok {
		t.Fatal("expected cached entry")
	}
	if len(cached.Intervals) != 2 {
		t.Errorf("cached interval count = %d, want the unfiltered superset of 2", len(cached.Intervals))
	}
}

func TestFetcher_CachedAndFreshFilterIdentically(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){okResponse}}
	fetcher, _ := newTestFetcher(t, upstream)

	earliest, _ := fare.ParseTimeOfDay("08:00")
	q := fetchQuery()
	q.EarliestDeparture = &earliest

	fresh := fetcher.Fetch(context.Background(), q)
	cachedOutcome := fetcher.Fetch(context.Background(), q)

	if fresh.Result.Price != 5900 || cachedOutcome.Result.Price != 5900 {
		t.Errorf("filtered prices = %d (fresh), %d (cached), want both 5900",
			fresh.Result.Price, cachedOutcome.Result.Price)
	}
	if !reflect.DeepEqual(fresh.Result, cachedOutcome.Result) {
		t.Error("cached and fresh filtering must select identically")
	}
}

func TestFetcher_TimeFilterVariantsShareOneCacheEntry(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){okResponse}}
	fetcher, _ := newTestFetcher(t, upstream)

	unfiltered := fetcher.Fetch(context.Background(), fetchQuery())
	if unfiltered.Result.Price != 3900 {
		t.Fatalf("unfiltered Price = %d, want 3900", unfiltered.Result.Price)
	}

	earliest, _ := fare.ParseTimeOfDay("08:00")
	filtered := fetchQuery()
	filtered.EarliestDeparture = &earliest

	out := fetcher.Fetch(context.Background(), filtered)
	if !out.ServedFromCache {
		t.Error("time-filter variant must be served from the shared cache entry")
	}
	if out.Result.Price != 5900 {
		t.Errorf("filtered Price = %d, want 5900", out.Result.Price)
	}
	if upstream.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls.Load())
	}
}

func TestFetcher_NoPriceSentinelCached(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){
		func() (*RawResponse, error) { return &RawResponse{Status: StatusNoPrice}, nil },
	}}
	fetcher, store := newTestFetcher(t, upstream)
	q := fetchQuery()

	out := fetcher.Fetch(context.Background(), q)
	if out.Result.Kind != fare.KindNoPrice {
		t.Fatalf("Kind = %s, want %s", out.Result.Kind, fare.KindNoPrice)
	}
	if out.Result.Price != 0 {
		t.Errorf("sentinel Price = %d, want 0", out.Result.Price)
	}

	// Known no-price answers are cached with the standard TTL, not retried.
	if !store.Contains(q.Fingerprint()) {
		t.Error("no-price sentinel must be cached")
	}
	fetcher.Fetch(context.Background(), q)
	if upstream.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls.Load())
	}
}

func TestFetcher_TransportErrorSurfacedImmediately(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){
		func() (*RawResponse, error) {
			return nil, &UpstreamError{Class: ErrorClassTransport, Message: "connection reset"}
		},
	}}
	fetcher, store := newTestFetcher(t, upstream)
	q := fetchQuery()

	out := fetcher.Fetch(context.Background(), q)
	if out.Result.Kind != fare.KindError {
		t.Fatalf("Kind = %s, want %s", out.Result.Kind, fare.KindError)
	}
	if out.ServedFromCache {
		t.Error("errored upstream path must report ServedFromCache = false")
	}
	if upstream.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1 (transport errors are not retried)", upstream.calls.Load())
	}
	if !store.Contains(q.Fingerprint()) {
		t.Error("error result should be cached with the short error TTL")
	}
}

func TestFetcher_RateLimitRetriedInsideQueue(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){
		func() (*RawResponse, error) { return nil, newRateLimitError(429, "429 Too Many Requests") },
		okResponse,
	}}
	fetcher, _ := newTestFetcher(t, upstream)

	out := fetcher.Fetch(context.Background(), fetchQuery())
	if out.Result.Kind != fare.KindPriced {
		t.Fatalf("Kind = %s, want %s (rate limit must be retried internally)", out.Result.Kind, fare.KindPriced)
	}
	if out.Result.Price != 3900 {
		t.Errorf("Price = %d, want 3900", out.Result.Price)
	}
	if upstream.calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2", upstream.calls.Load())
	}
}

func TestFetcher_MalformedResponseBecomesErrorResult(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){
		func() (*RawResponse, error) {
			return &RawResponse{Status: "ok", Connections: []RawConnection{{Price: 10}}}, nil
		},
	}}
	fetcher, _ := newTestFetcher(t, upstream)

	out := fetcher.Fetch(context.Background(), fetchQuery())
	if out.Result.Kind != fare.KindError {
		t.Errorf("Kind = %s, want %s for unparseable connection set", out.Result.Kind, fare.KindError)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	upstream := &fakeUpstream{responses: []func() (*RawResponse, error){okResponse}}
	fetcher, _ := newTestFetcher(t, upstream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := fetcher.Fetch(ctx, fetchQuery())
	if out.Result.Kind != fare.KindCancelled {
		t.Errorf("Kind = %s, want %s", out.Result.Kind, fare.KindCancelled)
	}
}
