package health

import (
	"fmt"
	"sort"
	"time"
)

// Aggregator turns stored weekly snapshots into trend views.
type Aggregator struct {
	catalog Catalog
	policy  OverallPolicy
	nowFunc func() time.Time
}

func NewAggregator(catalog Catalog, policy OverallPolicy) *Aggregator {
	if policy == nil {
		policy = SimpleAverage{}
	}
	return &Aggregator{catalog: catalog, policy: policy, nowFunc: time.Now}
}

// WithClock returns a copy of a that reads the current month from now.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	cp := *a
	cp.nowFunc = now
	return &cp
}

func (a *Aggregator) Catalog() Catalog      { return a.catalog }
func (a *Aggregator) Policy() OverallPolicy { return a.policy }

// Overall derives the headline score of s with the configured policy.
func (a *Aggregator) Overall(s WeeklySnapshot) int {
	return a.policy.Overall(a.catalog, s.Categories)
}

// Row derives the WeekRow of a decoded snapshot.
func (a *Aggregator) Row(id string, start, end time.Time, s WeeklySnapshot) WeekRow {
	row := WeekRow{
		ID:             id,
		WeekStart:      start.Format(dateLayout),
		WeekEnd:        end.Format(dateLayout),
		WeekLabel:      s.WeekLabel,
		OverallPercent: a.Overall(s),
		TotalSystems:   len(s.Categories),
		SystemPcts:     make(map[string]float64),
		Alerts:         len(s.Alerts),
	}
	if row.WeekLabel == "" {
		row.WeekLabel = WeekLabel(start, end)
	}

	statuses := make([]Status, 0, len(s.Categories))
	for i := range s.Categories {
		c := &s.Categories[i]
		pct := Clamp(c.FocusPercent)
		if sys, ok := a.catalog.Lookup(c.ID); ok {
			pct = ResolvePercent(sys, nil, c)
			if sys.Core {
				row.SystemPcts[sys.Key] = pct
			}
		}
		st := Classify(pct)
		if st == StatusStable {
			row.StableCount++
		}
		statuses = append(statuses, st)
	}
	row.Status = Worst(statuses...)
	return row
}

type datedRow struct {
	row   WeekRow
	start time.Time
}

// Build aggregates stored weeks in any order. Rows without any week boundary are
// dropped; undecodable snapshots count as empty weeks and are reported in Warnings.
func (a *Aggregator) Build(stored []StoredWeek) History {
	h := History{
		Weeks:    []WeekRow{},
		Months:   []MonthGroup{},
		Timeline: []TimelineItem{},
		Series:   Series{Labels: []string{}, Overall: []int{}, Systems: make(map[string][]*float64)},
	}

	sorted := append([]StoredWeek(nil), stored...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	rows := make([]datedRow, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, sw := range sorted {
		start, end, ok := weekBounds(sw.WeekStart, sw.WeekEnd)
		if !ok {
			h.Warnings = append(h.Warnings, fmt.Sprintf("week %q skipped: missing week boundaries", sw.ID))
			continue
		}
		key := start.Format(dateLayout)
		if seen[key] {
			continue // an older write for the same week
		}
		seen[key] = true

		snap, err := DecodeSnapshot(sw.SnapshotJSON)
		if err != nil {
			h.Warnings = append(h.Warnings, fmt.Sprintf("week %s: %v", key, err))
		}
		rows = append(rows, datedRow{row: a.Row(sw.ID, start, end, snap), start: start})
	}

	// chronological pass for deltas & series
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].start.Before(rows[j].start) })
	core := a.catalog.Core()
	for i := range rows {
		if i > 0 {
			d := rows[i].row.OverallPercent - rows[i-1].row.OverallPercent
			rows[i].row.Delta = &d
		}
		h.Series.Labels = append(h.Series.Labels, rows[i].row.WeekStart)
		h.Series.Overall = append(h.Series.Overall, rows[i].row.OverallPercent)
		for _, sys := range core {
			var v *float64
			if pct, ok := rows[i].row.SystemPcts[sys.Key]; ok {
				p := pct
				v = &p
			}
			h.Series.Systems[sys.Key] = append(h.Series.Systems[sys.Key], v)
		}
	}

	// display order: newest first
	for i := len(rows) - 1; i >= 0; i-- {
		h.Weeks = append(h.Weeks, rows[i].row)
	}

	h.Months = a.groupMonths(rows)
	h.Timeline = timeline(h.Months)
	h.Summary = summarize(h.Weeks)
	return h
}

// groupMonths buckets chronologically sorted rows by the month of their week start.
func (a *Aggregator) groupMonths(rows []datedRow) []MonthGroup {
	now := a.nowFunc()
	currentKey := fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month()))

	var chrono []MonthGroup
	for _, r := range rows {
		key := fmt.Sprintf("%04d-%02d", r.start.Year(), int(r.start.Month()))
		if len(chrono) == 0 || chrono[len(chrono)-1].Key != key {
			chrono = append(chrono, MonthGroup{
				Key:            key,
				Label:          r.start.Format("January 2006"),
				Year:           r.start.Year(),
				Month:          int(r.start.Month()),
				IsCurrentMonth: key == currentKey,
			})
		}
		g := &chrono[len(chrono)-1]
		g.Weeks = append([]WeekRow{r.row}, g.Weeks...) // newest first
	}

	for i := range chrono {
		g := &chrono[i]
		var sum int
		statuses := make([]Status, 0, len(g.Weeks))
		for j, w := range g.Weeks {
			sum += w.OverallPercent
			if j == 0 || w.OverallPercent < g.MinOverall {
				g.MinOverall = w.OverallPercent
			}
			if j == 0 || w.OverallPercent > g.MaxOverall {
				g.MaxOverall = w.OverallPercent
			}
			statuses = append(statuses, w.Status)
		}
		g.AvgOverall = Round(float64(sum) / float64(len(g.Weeks)))
		g.Status = Worst(statuses...)
		if i > 0 {
			d := g.AvgOverall - chrono[i-1].AvgOverall
			g.Delta = &d
		}
	}

	out := make([]MonthGroup, 0, len(chrono))
	for i := len(chrono) - 1; i >= 0; i-- {
		out = append(out, chrono[i])
	}
	return out
}

// timeline expands the current month into its weeks and collapses completed months.
func timeline(months []MonthGroup) []TimelineItem {
	items := make([]TimelineItem, 0, len(months))
	for i := range months {
		m := &months[i]
		if m.IsCurrentMonth {
			for j := range m.Weeks {
				items = append(items, TimelineItem{Kind: TimelineWeek, Week: &m.Weeks[j]})
			}
			continue
		}
		items = append(items, TimelineItem{Kind: TimelineMonth, Month: m})
	}
	return items
}

// summarize computes whole-window statistics over newest-first weeks.
func summarize(weeks []WeekRow) Summary {
	s := Summary{Weeks: len(weeks)}
	if len(weeks) == 0 {
		return s
	}

	var sum int
	for i := range weeks {
		w := weeks[i]
		sum += w.OverallPercent
		if s.BestWeek == nil || w.OverallPercent > s.BestWeek.OverallPercent {
			best := w
			s.BestWeek = &best
		}
		if s.WorstWeek == nil || w.OverallPercent < s.WorstWeek.OverallPercent {
			worst := w
			s.WorstWeek = &worst
		}
		if w.Delta != nil && *w.Delta > 0 && (s.BiggestJump == nil || *w.Delta > s.BiggestJump.Delta) {
			s.BiggestJump = &Jump{WeekStart: w.WeekStart, Delta: *w.Delta}
		}
	}
	s.AverageOverall = Round(float64(sum) / float64(len(weeks)))
	s.Streak = CurrentStreak(weeks)
	return s
}

// CurrentStreak counts the newest consecutive weeks sharing the first week's coarse bucket.
func CurrentStreak(newestFirst []WeekRow) Streak {
	if len(newestFirst) == 0 {
		return Streak{}
	}
	bucket := Bucket(newestFirst[0].Status)
	n := 0
	for _, w := range newestFirst {
		if Bucket(w.Status) != bucket {
			break
		}
		n++
	}
	return Streak{Length: n, Status: bucket}
}
