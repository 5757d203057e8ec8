package health

import (
	"fmt"
	"strings"
)

// Rollup folds a week's daily metric rows into a snapshot.
//
// Every catalog system with at least one row dated inside week is resolved, classified and
// upserted into existing (which may be nil). Categories entered by hand for systems without
// rows are kept untouched, as are existing alerts. One alert is added per CRITICAL system.
func Rollup(catalog Catalog, week Week, rows []MetricRow, existing *WeeklySnapshot) WeeklySnapshot {
	out := WeeklySnapshot{Categories: []CategorySnapshot{}, Alerts: []string{}}
	if existing != nil {
		out = existing.Normalize()
	}
	out.WeekLabel = week.Label()
	out.AsOfDateISO = week.EndISO()

	inWeek := make([]MetricRow, 0, len(rows))
	latest := ""
	for _, r := range rows {
		if !week.Contains(r.Date) {
			continue
		}
		inWeek = append(inWeek, r)
		if r.Date > latest {
			latest = r.Date
		}
	}
	if latest != "" {
		out.AsOfDateISO = latest
	}

	for _, sys := range catalog.Systems {
		sysRows := rowsFor(sys, inWeek)
		if len(sysRows) == 0 {
			continue
		}
		var prev *CategorySnapshot
		if c, ok := out.Category(sys.Slug()); ok {
			prev = &c
		}

		pct := ResolvePercent(sys, sysRows, prev)
		cat := CategorySnapshot{
			ID:             sys.Slug(),
			Name:           sys.Label,
			FocusPercent:   pct,
			RecordedStatus: Classify(pct),
			Headline:       headline(sys, pct, sysRows),
			Notes:          latestNote(sysRows),
			Metrics:        pairMetrics(sysRows),
		}
		if prev != nil && cat.Notes == "" {
			cat.Notes = prev.Notes
		}
		out = UpsertCategory(out, cat)

		if cat.RecordedStatus == StatusCritical {
			out = AddAlert(out, fmt.Sprintf("%s is below %d%% (%d%%)", sys.Label, int(AttentionThreshold), Round(pct)))
		}
	}
	return out
}

func rowsFor(sys System, rows []MetricRow) []MetricRow {
	var out []MetricRow
	for _, r := range rows {
		if sys.Matches(r.SystemKey) {
			out = append(out, r)
		}
	}
	return out
}

func headline(sys System, pct float64, rows []MetricRow) string {
	noun := sys.Category
	if sys.DeviceCoverageOnly {
		noun = "device coverage"
	}
	if m, ok := latestPair(rows); ok {
		return fmt.Sprintf("%d%% %s (%s of %s)", Round(pct), noun, trimFloat(m.Active), trimFloat(m.Total))
	}
	return fmt.Sprintf("%d%% %s", Round(pct), noun)
}

func latestPair(rows []MetricRow) (Meta, bool) {
	var best *MetricRow
	for i := range rows {
		if rows[i].Meta.Kind != MetaPair {
			continue
		}
		if best == nil || newerRow(&rows[i], best) {
			best = &rows[i]
		}
	}
	if best == nil {
		return Meta{}, false
	}
	return best.Meta, true
}

func latestNote(rows []MetricRow) string {
	var best *MetricRow
	for i := range rows {
		if strings.TrimSpace(rows[i].Meta.Text) == "" {
			continue
		}
		if best == nil || newerRow(&rows[i], best) {
			best = &rows[i]
		}
	}
	if best == nil {
		return ""
	}
	return strings.TrimSpace(best.Meta.Text)
}

func pairMetrics(rows []MetricRow) map[string]float64 {
	m, ok := latestPair(rows)
	if !ok {
		return nil
	}
	return map[string]float64{"active": m.Active, "total": m.Total}
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
