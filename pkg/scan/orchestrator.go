// Package scan orchestrates multi-day best-price batches: it expands a
// date range, dispatches per-day fetches concurrently, aggregates cached
// and fresh results, and publishes incremental progress to an observer.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/farescout/farescout/pkg/cache"
	"github.com/farescout/farescout/pkg/fare"
	"github.com/farescout/farescout/pkg/fetch"
	"github.com/farescout/farescout/pkg/progress"
	"github.com/farescout/farescout/pkg/queue"
	"github.com/farescout/farescout/pkg/station"
)

// Batch precondition errors; these fail fast before any per-day work.
var (
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrBatchTooLarge    = errors.New("date range exceeds maximum batch size")
	ErrUnknownSession   = errors.New("unknown session")
)

// Config holds orchestrator configuration.
type Config struct {
	// MaxBatchDays bounds one scan request.
	MaxBatchDays int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{MaxBatchDays: 30}
}

// Request describes one scan batch. Either Dates is an explicit day
// list, or StartDate/EndDate span a contiguous range.
type Request struct {
	SessionID string // generated when empty

	Origin      string
	Destination string

	StartDate time.Time
	EndDate   time.Time
	Dates     []time.Time

	AgeGroup      string
	DiscountType  string
	DiscountClass int
	TravelClass   int
	MaxTransfers  int
	FastOnly      bool
	RegionalOnly  bool

	EarliestDeparture string // "15:04", optional
	LatestArrival     string // "15:04", optional
}

// Params echoes the normalized query knobs a batch ran with.
type Params struct {
	AgeGroup          string `json:"age_group"`
	DiscountType      string `json:"discount_type,omitempty"`
	DiscountClass     int    `json:"discount_class,omitempty"`
	TravelClass       int    `json:"travel_class"`
	MaxTransfers      int    `json:"max_transfers"`
	FastOnly          bool   `json:"fast_only"`
	RegionalOnly      bool   `json:"regional_only"`
	EarliestDeparture string `json:"earliest_departure,omitempty"`
	LatestArrival     string `json:"latest_arrival,omitempty"`
}

// BatchResult is the aggregate outcome of a scan. Days always holds one
// entry per requested day, keyed by ISO date; no day is silently omitted.
type BatchResult struct {
	SessionID   string                    `json:"session_id"`
	Origin      fare.Station              `json:"origin"`
	Destination fare.Station              `json:"destination"`
	Params      Params                    `json:"params"`
	Days        map[string]fare.DayResult `json:"days"`
}

// Observer receives a progress snapshot after every settled day and once
// more at completion.
type Observer interface {
	OnProgress(p progress.SessionProgress)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(p progress.SessionProgress)

// OnProgress implements Observer.
func (f ObserverFunc) OnProgress(p progress.SessionProgress) { f(p) }

// Orchestrator drives multi-day scans through the shared fetcher, cache,
// queue and progress tracker.
type Orchestrator struct {
	cfg      Config
	fetcher  *fetch.Fetcher
	store    *cache.Store
	queue    *queue.Queue
	tracker  *progress.Tracker
	stations *station.Directory
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

// New creates an orchestrator.
func New(cfg Config, fetcher *fetch.Fetcher, store *cache.Store, q *queue.Queue,
	tracker *progress.Tracker, stations *station.Directory, logger zerolog.Logger) *Orchestrator {
	if cfg.MaxBatchDays <= 0 {
		cfg.MaxBatchDays = DefaultConfig().MaxBatchDays
	}

	return &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		queue:    q,
		tracker:  tracker,
		stations: stations,
		logger:   logger,
		sessions: make(map[string]context.CancelFunc),
	}
}

// Cancel flags a session as cancelled. In-flight and not-yet-started
// day fetches for that session short-circuit to a cancelled result; a
// call already admitted upstream completes and its result is discarded.
func (o *Orchestrator) Cancel(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	cancel, ok := o.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	cancel()
	return nil
}

func (o *Orchestrator) register(sessionID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionID] = cancel
}

func (o *Orchestrator) unregister(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sessions, sessionID)
}

// dayOutcome is one settled day flowing back to the aggregation loop.
type dayOutcome struct {
	date    time.Time
	result  fare.DayResult
	cached  bool
	latency time.Duration
}

// Run executes one scan batch. Preconditions (station resolution, date
// range, batch size) fail fast; after dispatch, per-day failures are
// isolated into error placeholders and never abort sibling days.
func (o *Orchestrator) Run(ctx context.Context, req Request, observer Observer) (*BatchResult, error) {
	base, err := o.buildQuery(req)
	if err != nil {
		return nil, err
	}

	dates, err := o.expandDates(req)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.register(sessionID, cancel)
	defer o.unregister(sessionID)

	// Read-only probe per day to seed the ETA classes.
	remCached, remUncached := 0, 0
	for _, d := range dates {
		if o.store.Contains(base.WithDate(d).Fingerprint()) {
			remCached++
		} else {
			remUncached++
		}
	}

	o.logger.Info().
		Str("session_id", sessionID).
		Str("origin", base.Origin.DisplayName).
		Str("destination", base.Destination.DisplayName).
		Int("days", len(dates)).
		Int("cached", remCached).
		Msg("Starting scan batch")

	avgUncached := o.tracker.NewUncachedAverage()
	avgCached := o.tracker.NewCachedAverage()

	outcomes := make(chan dayOutcome, len(dates))
	for _, d := range dates {
		go o.fetchDay(sessionCtx, base.WithDate(d), d, outcomes)
	}

	result := &BatchResult{
		SessionID:   sessionID,
		Origin:      base.Origin,
		Destination: base.Destination,
		Params:      echoParams(base),
		Days:        make(map[string]fare.DayResult, len(dates)),
	}

	completed := 0
	for completed < len(dates) {
		out := <-outcomes
		completed++
		result.Days[out.date.Format("2006-01-02")] = out.result

		if out.result.Kind == fare.KindCancelled {
			remCached = decrement(remCached)
		} else if out.cached {
			avgCached.Observe(float64(out.latency.Milliseconds()))
			remCached = decrement(remCached)
		} else {
			avgUncached.Observe(float64(out.latency.Milliseconds()))
			remUncached = decrement(remUncached)
		}

		o.publish(sessionCtx, progress.Update{
			SessionID:         sessionID,
			CompletedDays:     completed,
			TotalDays:         len(dates),
			CurrentDate:       out.date.Format("2006-01-02"),
			IsComplete:        false,
			RemainingUncached: remUncached,
			RemainingCached:   remCached,
			AvgUncachedMs:     avgUncached.Value(),
			AvgCachedMs:       avgCached.Value(),
			QueueDepth:        o.queue.Depth(),
			ActiveCalls:       o.queue.Active(),
		}, observer)
	}

	// Final update marking completion; emitted even for cancelled
	// sessions so pollers observe a terminal state.
	o.publishFinal(progress.Update{
		SessionID:     sessionID,
		CompletedDays: completed,
		TotalDays:     len(dates),
		IsComplete:    true,
		AvgUncachedMs: avgUncached.Value(),
		AvgCachedMs:   avgCached.Value(),
		QueueDepth:    o.queue.Depth(),
		ActiveCalls:   o.queue.Active(),
	}, observer)

	o.logger.Info().
		Str("session_id", sessionID).
		Int("days", len(dates)).
		Msg("Scan batch complete")

	return result, nil
}

// fetchDay resolves one day and reports its outcome. The cancellation
// flag is checked before any queue submission.
func (o *Orchestrator) fetchDay(ctx context.Context, q fare.Query, date time.Time, outcomes chan<- dayOutcome) {
	if ctx.Err() != nil {
		outcomes <- dayOutcome{date: date, result: fare.CancelledResult(), cached: true}
		return
	}

	start := time.Now()
	out := o.fetcher.Fetch(ctx, q)
	outcomes <- dayOutcome{
		date:    date,
		result:  out.Result,
		cached:  out.ServedFromCache,
		latency: time.Since(start),
	}
}

// publish writes a progress update unless the session was cancelled.
func (o *Orchestrator) publish(ctx context.Context, u progress.Update, observer Observer) {
	if ctx.Err() != nil {
		return
	}
	o.publishFinal(u, observer)
}

func (o *Orchestrator) publishFinal(u progress.Update, observer Observer) {
	o.tracker.Update(u)
	if observer != nil {
		if p, ok := o.tracker.Read(u.SessionID); ok {
			observer.OnProgress(p)
		}
	}
}

// buildQuery validates the request and constructs the normalized base
// query once at the orchestrator boundary.
func (o *Orchestrator) buildQuery(req Request) (fare.Query, error) {
	var q fare.Query

	origin, err := o.stations.Resolve(req.Origin)
	if err != nil {
		return q, fmt.Errorf("resolve origin %q: %w", req.Origin, err)
	}
	dest, err := o.stations.Resolve(req.Destination)
	if err != nil {
		return q, fmt.Errorf("resolve destination %q: %w", req.Destination, err)
	}

	ageGroup := req.AgeGroup
	if ageGroup == "" {
		ageGroup = "adult"
	}
	travelClass := req.TravelClass
	if travelClass == 0 {
		travelClass = 2
	}
	if travelClass != 1 && travelClass != 2 {
		return q, fmt.Errorf("invalid travel class %d", travelClass)
	}

	q = fare.Query{
		Origin:        origin,
		Destination:   dest,
		AgeGroup:      ageGroup,
		DiscountType:  req.DiscountType,
		DiscountClass: req.DiscountClass,
		TravelClass:   travelClass,
		MaxTransfers:  req.MaxTransfers,
		FastOnly:      req.FastOnly,
		RegionalOnly:  req.RegionalOnly,
	}

	if req.EarliestDeparture != "" {
		d, err := fare.ParseTimeOfDay(req.EarliestDeparture)
		if err != nil {
			return q, err
		}
		q.EarliestDeparture = &d
	}
	if req.LatestArrival != "" {
		d, err := fare.ParseTimeOfDay(req.LatestArrival)
		if err != nil {
			return q, err
		}
		q.LatestArrival = &d
	}

	return q, nil
}

// expandDates produces the explicit ordered day list for a request.
func (o *Orchestrator) expandDates(req Request) ([]time.Time, error) {
	if len(req.Dates) > 0 {
		if len(req.Dates) > o.cfg.MaxBatchDays {
			return nil, fmt.Errorf("%w: %d days (max %d)", ErrBatchTooLarge, len(req.Dates), o.cfg.MaxBatchDays)
		}
		dates := make([]time.Time, len(req.Dates))
		for i, d := range req.Dates {
			dates[i] = midnight(d)
		}
		return dates, nil
	}

	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end date required", ErrInvalidDateRange)
	}

	start, end := midnight(req.StartDate), midnight(req.EndDate)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidDateRange)
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
		if len(dates) > o.cfg.MaxBatchDays {
			return nil, fmt.Errorf("%w: max %d days", ErrBatchTooLarge, o.cfg.MaxBatchDays)
		}
	}
	return dates, nil
}

func echoParams(q fare.Query) Params {
	p := Params{
		AgeGroup:      q.AgeGroup,
		DiscountType:  q.DiscountType,
		DiscountClass: q.DiscountClass,
		TravelClass:   q.TravelClass,
		MaxTransfers:  q.MaxTransfers,
		FastOnly:      q.FastOnly,
		RegionalOnly:  q.RegionalOnly,
	}
	if q.EarliestDeparture != nil {
		p.EarliestDeparture = q.EarliestDeparture.String()
	}
	if q.LatestArrival != nil {
		p.LatestArrival = q.LatestArrival.String()
	}
	return p
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func decrement(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}
