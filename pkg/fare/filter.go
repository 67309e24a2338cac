package fare

// FilterIntervals returns the intervals that qualify under the requested
// time-of-day bounds. Only the clock-time component of the first departure
// and last arrival is compared; the date component is discarded. Overnight
// connections (arrival clock time before departure clock time, or arrival
// on a later calendar date) are compared against the same latest-arrival
// cutoff as if they arrived before midnight of day+1, which plain
// clock-time comparison already yields.
func FilterIntervals(intervals []IntervalRecord, earliest, latest *TimeOfDay) []IntervalRecord {
	if earliest == nil && latest == nil {
		return intervals
	}

	kept := make([]IntervalRecord, 0, len(intervals))
	for _, iv := range intervals {
		if earliest != nil && FromClock(iv.DepartureAt) < *earliest {
			continue
		}
		if latest != nil && FromClock(iv.ArrivalAt) > *latest {
			continue
		}
		kept = append(kept, iv)
	}
	return kept
}

// CheapestWithin applies the time-of-day filter to a full unfiltered
// interval set and selects the cheapest qualifying interval. The input
// must already be sorted ascending by price, so the first survivor wins.
// An empty survivor set yields the no-connections-in-window sentinel,
// which is distinct from the no-price sentinel.
func CheapestWithin(intervals []IntervalRecord, earliest, latest *TimeOfDay) DayResult {
	if len(intervals) == 0 {
		return NoPriceResult()
	}

	kept := FilterIntervals(intervals, earliest, latest)
	if len(kept) == 0 {
		return NoConnectionsResult(intervals)
	}

	best := kept[0]
	return DayResult{
		Kind:        KindPriced,
		Price:       best.Price,
		Info:        best.Summary,
		DepartureAt: best.DepartureAt,
		ArrivalAt:   best.ArrivalAt,
		Intervals:   intervals,
	}
}
