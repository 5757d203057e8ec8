package health

import (
	"math"
	"strings"
)

// Clamp coerces non-finite values to 0 and bounds v to [0,100]. Fractions are preserved.
func Clamp(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// Round rounds half away from zero, the same way the dashboard displays percents.
func Round(v float64) int {
	if !isFinite(v) {
		return 0
	}
	return int(math.Round(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ResolvePercent picks the canonical completion percentage of sys.
//
// The first available source wins, in this order:
//  1. a row carrying the system's primary metric key
//  2. a row whose meta is an {active, total} pair
//  3. the focusPercent stored on cat
//  4. fallback
//  5. 0
//
// Competing rows of the same rank are ordered by date, then updated_at, then value, so the
// result does not depend on the order of rows.
func ResolvePercent(sys System, rows []MetricRow, cat *CategorySnapshot, fallback ...float64) float64 {
	primary := sys.PrimaryMetricKey()

	var best *MetricRow
	for i := range rows {
		r := &rows[i]
		if !sys.Matches(r.SystemKey) || !strings.EqualFold(r.MetricKey, primary) {
			continue
		}
		if best == nil || newerRow(r, best) {
			best = r
		}
	}
	if best != nil {
		return Clamp(best.MetricValue)
	}

	var bestPair *MetricRow
	for i := range rows {
		r := &rows[i]
		if !sys.Matches(r.SystemKey) {
			continue
		}
		if _, ok := r.Meta.Percent(); !ok {
			continue
		}
		if bestPair == nil || newerRow(r, bestPair) {
			bestPair = r
		}
	}
	if bestPair != nil {
		pct, _ := bestPair.Meta.Percent()
		return Clamp(pct)
	}

	if cat != nil {
		return Clamp(cat.FocusPercent)
	}
	if len(fallback) > 0 {
		return Clamp(fallback[0])
	}
	return 0
}

// newerRow reports whether a should win over b.
func newerRow(a, b *MetricRow) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	av, bv := a.MetricValue, b.MetricValue
	if !isFinite(av) {
		av = 0
	}
	if !isFinite(bv) {
		bv = 0
	}
	if av != bv {
		return av > bv
	}
	return a.MetricKey < b.MetricKey
}
