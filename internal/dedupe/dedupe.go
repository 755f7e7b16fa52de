// Package dedupe merges scraped candidates within and across sources into
// a unique set keyed by fuzzy place identity.
package dedupe

import (
	"strconv"
	"strings"

	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/search"
)

// DefaultPrecision rounds coordinates to 3 decimal digits (~100m) for the
// identity key.
const DefaultPrecision = 3

// Key builds the dedup identity key for a candidate: lower-cased trimmed
// name plus latitude/longitude rounded to precision decimal digits. Two
// candidates sharing a key are the same place. Candidates without
// coordinates degrade to a looser name+city key, which can conflate
// same-named venues across a city or miss true duplicates; that tradeoff
// is inherited from the upstream data.
func Key(c model.Candidate, precision int) string {
	name := search.Normalize(c.Name)
	if !c.HasCoordinates() {
		return name + "|city:" + search.Normalize(c.City)
	}
	return name + "|" + roundCoord(*c.Latitude, precision) + "_" + roundCoord(*c.Longitude, precision)
}

func roundCoord(v float64, precision int) string {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// Deduplicate merges candidates sharing an identity key. The first
// candidate seen seeds the entry; later ones merge in with non-empty
// fields winning. Output preserves first-seen order. Running Deduplicate
// on its own output is a no-op.
func Deduplicate(candidates []model.Candidate, precision int) []model.Candidate {
	seen := make(map[string]model.Candidate, len(candidates))
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		key := Key(c, precision)
		existing, ok := seen[key]
		if !ok {
			seen[key] = c
			order = append(order, key)
			continue
		}
		seen[key] = existing.Merge(c)
	}

	out := make([]model.Candidate, 0, len(seen))
	for _, key := range order {
		out = append(out, seen[key])
	}
	return out
}
