package station

import "github.com/farescout/farescout/pkg/fare"

// DefaultDirectory returns a directory seeded with major long-distance
// stations. Deployments with a full station dataset should build their
// own directory and Add entries instead.
func DefaultDirectory() *Directory {
	d := NewDirectory(nil)

	seed := []struct {
		station fare.Station
		aliases []string
	}{
		{fare.Station{ID: "8000105", NormalizedID: "frankfurt(main)hbf", DisplayName: "Frankfurt(Main)Hbf"},
			[]string{"Frankfurt Hbf", "Frankfurt am Main Hbf", "Frankfurt (Main) Hbf"}},
		{fare.Station{ID: "8011160", NormalizedID: "berlin hbf", DisplayName: "Berlin Hbf"},
			[]string{"Berlin Hauptbahnhof"}},
		{fare.Station{ID: "8002549", NormalizedID: "hamburg hbf", DisplayName: "Hamburg Hbf"},
			[]string{"Hamburg Hauptbahnhof"}},
		{fare.Station{ID: "8000261", NormalizedID: "muenchen hbf", DisplayName: "München Hbf"},
			[]string{"Muenchen Hbf", "Munich Hbf", "München Hauptbahnhof"}},
		{fare.Station{ID: "8000207", NormalizedID: "koeln hbf", DisplayName: "Köln Hbf"},
			[]string{"Koeln Hbf", "Cologne Hbf", "Köln Hauptbahnhof"}},
		{fare.Station{ID: "8000096", NormalizedID: "stuttgart hbf", DisplayName: "Stuttgart Hbf"},
			nil},
		{fare.Station{ID: "8000085", NormalizedID: "duesseldorf hbf", DisplayName: "Düsseldorf Hbf"},
			[]string{"Duesseldorf Hbf"}},
		{fare.Station{ID: "8000152", NormalizedID: "hannover hbf", DisplayName: "Hannover Hbf"},
			nil},
		{fare.Station{ID: "8010205", NormalizedID: "leipzig hbf", DisplayName: "Leipzig Hbf"},
			nil},
		{fare.Station{ID: "8000284", NormalizedID: "nuernberg hbf", DisplayName: "Nürnberg Hbf"},
			[]string{"Nuernberg Hbf", "Nuremberg Hbf"}},
		{fare.Station{ID: "8000244", NormalizedID: "mannheim hbf", DisplayName: "Mannheim Hbf"},
			nil},
		{fare.Station{ID: "8000191", NormalizedID: "karlsruhe hbf", DisplayName: "Karlsruhe Hbf"},
			nil},
		{fare.Station{ID: "8010085", NormalizedID: "dresden hbf", DisplayName: "Dresden Hbf"},
			nil},
		{fare.Station{ID: "8000080", NormalizedID: "dortmund hbf", DisplayName: "Dortmund Hbf"},
			nil},
		{fare.Station{ID: "8000098", NormalizedID: "essen hbf", DisplayName: "Essen Hbf"},
			nil},
		{fare.Station{ID: "8000050", NormalizedID: "bremen hbf", DisplayName: "Bremen Hbf"},
			nil},
	}

	for _, s := range seed {
		d.Add(s.station, s.aliases...)
	}
	return d
}
