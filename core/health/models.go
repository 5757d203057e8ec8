package health

import (
	"encoding/json"
	"strings"
	"time"
)

// Status tiers
const (
	StatusStable    Status = "STABLE"
	StatusAttention Status = "ATTENTION"
	StatusCritical  Status = "CRITICAL"
)

// Metric sources
const (
	SourceManual    Source = "Manual"
	SourceAPI       Source = "API"
	SourceExcel     Source = "Excel"
	SourceToddleLog Source = "ToddleLog"
)

var AllSources = []Source{SourceManual, SourceAPI, SourceExcel, SourceToddleLog}

type (
	Status string
	Source string
)

// ParseSource matches s case-insensitively against the known sources.
func ParseSource(s string) (Source, bool) {
	s = strings.TrimSpace(s)
	for _, src := range AllSources {
		if strings.EqualFold(string(src), s) {
			return src, true
		}
	}
	return "", false
}

// MetricRow is one daily observation of a system metric.
// Rows are overwritten (not versioned) on (SystemKey, MetricKey, Date).
type MetricRow struct {
	SystemKey   string    `json:"system_key"`
	MetricKey   string    `json:"metric_key"`
	MetricValue float64   `json:"metric_value"`
	Source      Source    `json:"source"`
	Meta        Meta      `json:"meta"`
	Date        string    `json:"date"` // YYYY-MM-DD
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategorySnapshot is one system's state within a week.
//
// RecordedStatus is the editorial status entered (or rolled up) for the week and wins in
// "current week" views; DerivedStatus is always recomputed from FocusPercent.
type CategorySnapshot struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	RecordedStatus Status             `json:"status"`
	FocusPercent   float64            `json:"focusPercent"`
	Headline       string             `json:"headline"`
	Notes          string             `json:"notes,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

func (c CategorySnapshot) DerivedStatus() Status {
	return Classify(c.FocusPercent)
}

func (c CategorySnapshot) clone() CategorySnapshot {
	if c.Metrics != nil {
		m := make(map[string]float64, len(c.Metrics))
		for k, v := range c.Metrics {
			m[k] = v
		}
		c.Metrics = m
	}
	return c
}

// WeeklySnapshot is the unit of historical record. Category ids are unique within a snapshot.
type WeeklySnapshot struct {
	WeekLabel   string             `json:"weekLabel"`
	AsOfDateISO string             `json:"asOfDateISO"`
	Categories  []CategorySnapshot `json:"categories"`
	Alerts      []string           `json:"alerts"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Pinned aggregate override keys
const (
	MetricLastWeekOverall = "lastWeekOverallPercent"
)

// Category returns the category with the given id.
func (s WeeklySnapshot) Category(id string) (CategorySnapshot, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return CategorySnapshot{}, false
}

// Clone returns a deep copy of s.
func (s WeeklySnapshot) Clone() WeeklySnapshot {
	out := s
	if s.Categories != nil {
		out.Categories = make([]CategorySnapshot, 0, len(s.Categories))
		for _, c := range s.Categories {
			out.Categories = append(out.Categories, c.clone())
		}
	}
	if s.Alerts != nil {
		out.Alerts = make([]string, len(s.Alerts))
		copy(out.Alerts, s.Alerts)
	}
	if s.Metrics != nil {
		out.Metrics = make(map[string]float64, len(s.Metrics))
		for k, v := range s.Metrics {
			out.Metrics[k] = v
		}
	}
	return out
}

// Pinned returns the aggregate override stored under key, if any.
func (s WeeklySnapshot) Pinned(key string) (float64, bool) {
	v, ok := s.Metrics[key]
	if !ok || !isFinite(v) {
		return 0, false
	}
	return v, true
}

// Normalize clamps every percent, drops duplicate category ids (first wins) and
// replaces nil lists with empty ones so the JSON shape is stable.
func (s WeeklySnapshot) Normalize() WeeklySnapshot {
	out := s.Clone()
	seen := make(map[string]bool, len(out.Categories))
	cats := make([]CategorySnapshot, 0, len(out.Categories))
	for _, c := range out.Categories {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.FocusPercent = Clamp(c.FocusPercent)
		if p := ParseStatus(string(c.RecordedStatus)); p != "" {
			c.RecordedStatus = p
		} else {
			c.RecordedStatus = c.DerivedStatus()
		}
		cats = append(cats, c)
	}
	out.Categories = cats
	if out.Alerts == nil {
		out.Alerts = []string{}
	}
	return out
}

// StoredWeek is a persisted weekly snapshot row as read from storage.
type StoredWeek struct {
	ID           string          `json:"id"`
	WeekStart    string          `json:"week_start"`
	WeekEnd      string          `json:"week_end"`
	SnapshotJSON json.RawMessage `json:"snapshot_json"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SystemUpdate is the most recent observation time of a system.
type SystemUpdate struct {
	SystemKey   string    `json:"system_key" db:"system_key"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// WeekRow is the read-derived view of a StoredWeek.
type WeekRow struct {
	ID             string             `json:"id"`
	WeekStart      string             `json:"week_start"`
	WeekEnd        string             `json:"week_end"`
	WeekLabel      string             `json:"weekLabel"`
	OverallPercent int                `json:"overallPercent"`
	Status         Status             `json:"status"`
	StableCount    int                `json:"stableCount"`
	TotalSystems   int                `json:"totalSystems"`
	SystemPcts     map[string]float64 `json:"systemPcts"`
	Alerts         int                `json:"alerts"`
	Delta          *int               `json:"delta"`
}

// MonthGroup aggregates all WeekRows sharing the calendar month of their week start.
type MonthGroup struct {
	Key            string    `json:"key"` // YYYY-MM
	Label          string    `json:"label"`
	Year           int       `json:"year"`
	Month          int       `json:"month"`
	Weeks          []WeekRow `json:"weeks"`
	AvgOverall     int       `json:"avgOverall"`
	MinOverall     int       `json:"minOverall"`
	MaxOverall     int       `json:"maxOverall"`
	Status         Status    `json:"status"`
	IsCurrentMonth bool      `json:"isCurrentMonth"`
	Delta          *int      `json:"delta"`
}

// TimelineItem is either a single week (current month) or a collapsed completed month.
type TimelineItem struct {
	Kind  string      `json:"kind"` // week | month
	Week  *WeekRow    `json:"week,omitempty"`
	Month *MonthGroup `json:"month,omitempty"`
}

const (
	TimelineWeek  = "week"
	TimelineMonth = "month"
)

// Streak buckets
const (
	BucketStable    = "stable"
	BucketAttention = "attention"
)

type Jump struct {
	WeekStart string `json:"week_start"`
	Delta     int    `json:"delta"`
}

type Streak struct {
	Length int    `json:"length"`
	Status string `json:"status"` // stable | attention
}

type Summary struct {
	AverageOverall int      `json:"averageOverall"`
	BestWeek       *WeekRow `json:"bestWeek"`
	WorstWeek      *WeekRow `json:"worstWeek"`
	BiggestJump    *Jump    `json:"biggestJump"`
	Streak         Streak   `json:"streak"`
	Weeks          int      `json:"weeks"`
}

// Series holds chart-ready data in chronological order.
type Series struct {
	Labels  []string              `json:"labels"`
	Overall []int                 `json:"overall"`
	Systems map[string][]*float64 `json:"systems"` // nil where the system was not reported
}

type History struct {
	Weeks    []WeekRow      `json:"weeks"`  // newest first
	Months   []MonthGroup   `json:"months"` // newest first
	Timeline []TimelineItem `json:"timeline"`
	Summary  Summary        `json:"summary"`
	Series   Series         `json:"series"`
	Warnings []string       `json:"warnings,omitempty"`
}
