package fare

import (
	"fmt"
	"time"
)

// ResultKind discriminates the possible per-day outcomes.
type ResultKind string

const (
	// KindPriced is a regular result with at least one priced connection.
	KindPriced ResultKind = "priced"

	// KindNoPrice means the upstream reported no bookable price for the day.
	KindNoPrice ResultKind = "no_price"

	// KindNoConnections means connections exist but none survived the
	// requested time-of-day window.
	KindNoConnections ResultKind = "no_connections_in_window"

	// KindError is a per-day error placeholder (transport or parse failure).
	KindError ResultKind = "error"

	// KindCancelled marks a day that was skipped because the session was
	// cancelled before its fetch settled.
	KindCancelled ResultKind = "cancelled"
)

// TimeOfDay is a clock time without a date, stored as minutes since
// midnight. It is the unit of the display-only departure/arrival filter.
type TimeOfDay int

// ParseTimeOfDay parses "15:04" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// FromClock extracts the time-of-day component of t, discarding the date.
func FromClock(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// String formats the time of day as "15:04".
func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}

// Station identifies a resolved station: the upstream identifier, the
// normalized identifier used in fingerprints, and the human display name.
type Station struct {
	ID           string `json:"id"`
	NormalizedID string `json:"normalized_id"`
	DisplayName  string `json:"display_name"`
}

// Query is the validated value type for a single-day best-price lookup.
// It is constructed once at the orchestrator boundary; all fields are
// normalized before use. EarliestDeparture and LatestArrival are
// display-only filters and never participate in cache fingerprints.
type Query struct {
	Origin      Station
	Destination Station

	// Date is the local travel date; only the calendar day is significant.
	Date time.Time

	AgeGroup      string // e.g. "adult", "junior", "senior"
	DiscountType  string // loyalty card type, "" for none
	DiscountClass int    // class the discount card is valid for
	TravelClass   int    // 1 or 2
	MaxTransfers  int    // -1 means unlimited
	FastOnly      bool   // only fastest connections
	RegionalOnly  bool   // regional services only

	EarliestDeparture *TimeOfDay
	LatestArrival     *TimeOfDay
}

// WithDate returns a copy of the query pointing at another travel date.
func (q Query) WithDate(d time.Time) Query {
	q.Date = d
	return q
}

// IntervalRecord is one upstream connection option for a day.
type IntervalRecord struct {
	// Price in euro cents. Price and Summary are carried as separate
	// fields end to end; nothing is ever re-derived from a combined key.
	Price int64 `json:"price"`

	DepartureAt time.Time `json:"departure_at"`
	ArrivalAt   time.Time `json:"arrival_at"`

	DepartureStation string `json:"departure_station"`
	ArrivalStation   string `json:"arrival_station"`

	// Summary is the human-readable route description, e.g. "ICE 571, RE 7".
	Summary string `json:"summary"`

	Transfers int `json:"transfers"`
}

// DayResult is the outcome for one travel day. Intervals always holds the
// full unfiltered option set sorted ascending by price; Price, Info,
// DepartureAt and ArrivalAt describe the cheapest interval that qualifies
// under the currently requested time-of-day filters.
type DayResult struct {
	Kind ResultKind `json:"kind"`

	// Price in euro cents; zero for sentinel and error results.
	Price int64  `json:"price"`
	Info  string `json:"info"`

	DepartureAt time.Time `json:"departure_at,omitempty"`
	ArrivalAt   time.Time `json:"arrival_at,omitempty"`

	Intervals []IntervalRecord `json:"intervals,omitempty"`
}

// Priced reports whether the result carries a real price.
func (r *DayResult) Priced() bool {
	return r.Kind == KindPriced
}

// NoPriceResult builds the zero-price sentinel for a day the upstream
// knows but cannot price.
func NoPriceResult() DayResult {
	return DayResult{Kind: KindNoPrice, Info: "no price available"}
}

// NoConnectionsResult builds the zero-price sentinel for a day where the
// time-of-day window filtered out every connection.
func NoConnectionsResult(intervals []IntervalRecord) DayResult {
	return DayResult{
		Kind:      KindNoConnections,
		Info:      "no connections in requested time window",
		Intervals: intervals,
	}
}

// ErrorResult builds the per-day error placeholder.
func ErrorResult(info string) DayResult {
	return DayResult{Kind: KindError, Info: info}
}

// CancelledResult builds the placeholder for a day skipped by cancellation.
func CancelledResult() DayResult {
	return DayResult{Kind: KindCancelled, Info: "session cancelled"}
}
