package fare

import (
	"fmt"
	"strings"
)

// Fingerprint generates the deterministic cache key for a query.
// Format: fare:origin:destination:date:k1=v1:k2=v2:...
//
// Example:
//
//	fare:8000105:8011160:2026-09-14:age=adult:class=2:discount=bc25/2:fast=false:regional=false:transfers=-1
//
// Two invariants hold: boolean-like fields are normalized to "true"/"false"
// before joining, and the display-only time-of-day filters
// (EarliestDeparture, LatestArrival) are excluded, so one cached day serves
// every time-filter variant of the same query.
func (q Query) Fingerprint() string {
	parts := []string{
		"fare",
		q.Origin.NormalizedID,
		q.Destination.NormalizedID,
		q.Date.Format("2006-01-02"),
	}

	discount := "none"
	if q.DiscountType != "" {
		discount = fmt.Sprintf("%s/%d", strings.ToLower(q.DiscountType), q.DiscountClass)
	}

	// Sorted k=v parts for determinism.
	parts = append(parts,
		fmt.Sprintf("age=%s", strings.ToLower(q.AgeGroup)),
		fmt.Sprintf("class=%d", q.TravelClass),
		fmt.Sprintf("discount=%s", discount),
		fmt.Sprintf("fast=%t", q.FastOnly),
		fmt.Sprintf("regional=%t", q.RegionalOnly),
		fmt.Sprintf("transfers=%d", q.MaxTransfers),
	)

	return strings.Join(parts, ":")
}
