// Package ranking selects the top-K records by fault rate and scales them
// for fixed-width bar rendering.
package ranking

import (
	"math"
	"sort"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// DefaultK is the number of entries a fault widget shows.
const DefaultK = 5

// percentageCeiling caps the rescaling denominator: once the displayed raw
// values add up to more than this, bars show their true percentage.
const percentageCeiling = 100.0

// Rank drops non-positive values, sorts the rest descending (stable, so ties
// keep arrival order), keeps the first k and computes relative percentages
// against min(sum of kept values, 100). k <= 0 selects DefaultK.
func Rank(records []models.RawRecord, k int) []models.RankedEntry {
	if k <= 0 {
		k = DefaultK
	}

	candidates := make([]models.RawRecord, 0, len(records))
	for _, r := range records {
		// A zero fault rate is no signal and must not take a slot.
		if r.Value > 0 && !math.IsInf(r.Value, 1) {
			candidates = append(candidates, r)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	sum := 0.0
	for _, c := range candidates {
		sum += c.Value
	}
	denominator := math.Min(sum, percentageCeiling)

	out := make([]models.RankedEntry, 0, len(candidates))
	for _, c := range candidates {
		var pct float64
		switch {
		case denominator <= 0:
			pct = 0
		case denominator == percentageCeiling:
			pct = c.Value
		default:
			pct = c.Value / denominator * 100
		}
		out = append(out, models.RankedEntry{Key: c.Key, RawValue: c.Value, RelativePercentage: pct})
	}
	return out
}
