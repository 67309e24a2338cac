// Package station resolves human station names to upstream identifiers.
// Resolution is a precondition for every scan: an unresolved endpoint
// fails the whole batch before any per-day work starts.
package station

import (
	"errors"
	"strings"
	"sync"

	"github.com/farescout/farescout/pkg/fare"
)

// ErrStationNotFound is returned when a name resolves to no known station.
var ErrStationNotFound = errors.New("station not found")

// Directory is an in-memory station lookup keyed by normalized name.
type Directory struct {
	mu       sync.RWMutex
	stations map[string]fare.Station
}

// NewDirectory creates a directory from the given stations, indexing each
// under its normalized display name.
func NewDirectory(stations []fare.Station) *Directory {
	d := &Directory{stations: make(map[string]fare.Station, len(stations))}
	for _, s := range stations {
		d.stations[Normalize(s.DisplayName)] = s
	}
	return d
}

// Add registers a station, optionally under extra alias names.
func (d *Directory) Add(s fare.Station, aliases ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stations[Normalize(s.DisplayName)] = s
	for _, alias := range aliases {
		d.stations[Normalize(alias)] = s
	}
}

// Resolve looks up a station by human name.
func (d *Directory) Resolve(name string) (fare.Station, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.stations[Normalize(name)]
	if !ok {
		return fare.Station{}, ErrStationNotFound
	}
	return s, nil
}

// Normalize folds a station name for lookup and fingerprint use:
// lower-cased, whitespace collapsed, German umlauts transliterated.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	replacer := strings.NewReplacer(
		"ä", "ae",
		"ö", "oe",
		"ü", "ue",
		"ß", "ss",
	)
	name = replacer.Replace(name)

	return strings.Join(strings.Fields(name), " ")
}
