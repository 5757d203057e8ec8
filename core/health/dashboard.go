package health

import "time"

// Tile is one system card of the executive dashboard.
type Tile struct {
	ID             string     `json:"id"`
	SystemKey      string     `json:"system_key,omitempty"`
	Name           string     `json:"name"`
	Percent        float64    `json:"percent"`
	RecordedStatus Status     `json:"recordedStatus"`
	DerivedStatus  Status     `json:"derivedStatus"`
	Headline       string     `json:"headline"`
	Core           bool       `json:"core"`
	LastUpdated    *time.Time `json:"lastUpdated"`
}

// Dashboard is the current-week KPI view.
type Dashboard struct {
	WeekStart      string   `json:"week_start"`
	WeekEnd        string   `json:"week_end"`
	WeekLabel      string   `json:"weekLabel"`
	Policy         string   `json:"policy"`
	OverallPercent int      `json:"overallPercent"`
	Delta          Delta    `json:"delta"`
	Status         Status   `json:"status"`
	StableCount    int      `json:"stableCount"`
	TotalSystems   int      `json:"totalSystems"`
	Tiles          []Tile   `json:"tiles"`
	Alerts         []string `json:"alerts"`
}

// Dashboard builds the KPI view of the current week. The aggregate status is worst-wins
// over recorded statuses since editorial overrides win in current-week views. previous is
// the overall score of the week before, when one is stored.
func (a *Aggregator) Dashboard(week Week, current WeeklySnapshot, previous *int, updates []SystemUpdate) Dashboard {
	current = current.Normalize()
	overall := a.Overall(current)
	d := Dashboard{
		WeekStart:      week.StartISO(),
		WeekEnd:        week.EndISO(),
		WeekLabel:      current.WeekLabel,
		Policy:         a.policy.Name(),
		OverallPercent: overall,
		Delta:          WeekOverWeek(overall, current, previous),
		TotalSystems:   len(current.Categories),
		Tiles:          make([]Tile, 0, len(current.Categories)),
		Alerts:         current.Alerts,
	}
	if d.WeekLabel == "" {
		d.WeekLabel = week.Label()
	}

	recorded := make([]Status, 0, len(current.Categories))
	for _, c := range current.Categories {
		t := Tile{
			ID:             c.ID,
			Name:           c.Name,
			Percent:        c.FocusPercent,
			RecordedStatus: c.RecordedStatus,
			DerivedStatus:  c.DerivedStatus(),
			Headline:       c.Headline,
		}
		if sys, ok := a.catalog.Lookup(c.ID); ok {
			t.SystemKey = sys.Key
			t.Core = sys.Core
			t.LastUpdated = lastUpdated(sys, updates)
		}
		if t.DerivedStatus == StatusStable {
			d.StableCount++
		}
		recorded = append(recorded, c.RecordedStatus)
		d.Tiles = append(d.Tiles, t)
	}
	d.Status = Worst(recorded...)
	return d
}

func lastUpdated(sys System, updates []SystemUpdate) *time.Time {
	var out *time.Time
	for i := range updates {
		u := updates[i]
		if !sys.Matches(u.SystemKey) {
			continue
		}
		if out == nil || u.LastUpdated.After(*out) {
			t := u.LastUpdated
			out = &t
		}
	}
	return out
}
