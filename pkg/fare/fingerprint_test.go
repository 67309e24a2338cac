package fare

import (
	"testing"
	"time"
)

func testQuery() Query {
	return Query{
		Origin:       Station{ID: "8000105", NormalizedID: "8000105", DisplayName: "Frankfurt(Main)Hbf"},
		Destination:  Station{ID: "8011160", NormalizedID: "8011160", DisplayName: "Berlin Hbf"},
		Date:         time.Date(2026, 9, 14, 0, 0, 0, 0, time.Local),
		AgeGroup:     "adult",
		TravelClass:  2,
		MaxTransfers: -1,
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	q1 := testQuery()
	q2 := testQuery()

	if q1.Fingerprint() != q2.Fingerprint() {
		t.Errorf("equivalent queries produced different fingerprints:\n%s\n%s",
			q1.Fingerprint(), q2.Fingerprint())
	}
}

func TestFingerprint_ExcludesTimeFilters(t *testing.T) {
	base := testQuery()

	earliest, _ := ParseTimeOfDay("08:00")
	latest, _ := ParseTimeOfDay("20:00")

	filtered := testQuery()
	filtered.EarliestDeparture = &earliest
	filtered.LatestArrival = &latest

	if base.Fingerprint() != filtered.Fingerprint() {
		t.Error("time-of-day filters must not influence the fingerprint")
	}
}

func TestFingerprint_DistinguishingFields(t *testing.T) {
	base := testQuery()

	tests := []struct {
		name   string
		mutate func(q *Query)
	}{
		{"date", func(q *Query) { q.Date = q.Date.AddDate(0, 0, 1) }},
		{"origin", func(q *Query) { q.Origin.NormalizedID = "8000191" }},
		{"destination", func(q *Query) { q.Destination.NormalizedID = "8000191" }},
		{"travel class", func(q *Query) { q.TravelClass = 1 }},
		{"discount", func(q *Query) { q.DiscountType = "bc25"; q.DiscountClass = 2 }},
		{"max transfers", func(q *Query) { q.MaxTransfers = 0 }},
		{"fast only", func(q *Query) { q.FastOnly = true }},
		{"regional only", func(q *Query) { q.RegionalOnly = true }},
		{"age group", func(q *Query) { q.AgeGroup = "senior" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := testQuery()
			tt.mutate(&q)
			if q.Fingerprint() == base.Fingerprint() {
				t.Errorf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprint_NormalizesCase(t *testing.T) {
	q1 := testQuery()
	q1.AgeGroup = "Adult"
	q1.DiscountType = "BC25"

	q2 := testQuery()
	q2.AgeGroup = "adult"
	q2.DiscountType = "bc25"

	if q1.Fingerprint() != q2.Fingerprint() {
		t.Error("fingerprint must be case-insensitive for category fields")
	}
}
