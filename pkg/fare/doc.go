// Package fare defines the domain types for best-price day queries:
// the normalized query value, per-day results with their full interval
// sets, query fingerprinting for cache keys, and the display-only
// time-of-day filter.
package fare
