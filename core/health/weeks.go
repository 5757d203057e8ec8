package health

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Week is a calendar week running Monday to Sunday.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the week (Monday to Sunday) containing t.
func WeekOf(t time.Time) Week {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start := day.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 6)}
}

func (w Week) StartISO() string { return w.Start.Format(dateLayout) }
func (w Week) EndISO() string   { return w.End.Format(dateLayout) }

// Contains reports whether the YYYY-MM-DD date lies within w.
func (w Week) Contains(date string) bool {
	return date >= w.StartISO() && date <= w.EndISO()
}

// Previous returns the week before w.
func (w Week) Previous() Week {
	return WeekOf(w.Start.AddDate(0, 0, -7))
}

// Label returns the display label of w, e.g. "Sep 14 - Sep 20, 2026".
func (w Week) Label() string {
	return WeekLabel(w.Start, w.End)
}

func WeekLabel(start, end time.Time) string {
	if start.Year() != end.Year() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 2"), end.Format("Jan 2, 2006"))
}

// weekBounds resolves the boundaries of a stored row. A single missing boundary is
// derived from the other one; ok is false when neither parses.
func weekBounds(startISO, endISO string) (start, end time.Time, ok bool) {
	start, errS := time.ParseInLocation(dateLayout, startISO, time.UTC)
	end, errE := time.ParseInLocation(dateLayout, endISO, time.UTC)
	switch {
	case errS == nil && errE == nil:
		return start, end, true
	case errS == nil:
		return start, start.AddDate(0, 0, 6), true
	case errE == nil:
		return end.AddDate(0, 0, -6), end, true
	default:
		return time.Time{}, time.Time{}, false
	}
}
