package health

import (
	"strings"

	"github.com/pkg/errors"
)

// Overall policies
const (
	PolicySimple   = "simple"
	PolicyWeighted = "weighted"
)

// PlaceholderDrop is subtracted from this week's score to fake last week's when no
// prior measurement exists.
const PlaceholderDrop = 3

// OverallPolicy derives the headline "digital health" score of a set of categories.
type OverallPolicy interface {
	Name() string
	Overall(catalog Catalog, categories []CategorySnapshot) int
}

// NewOverallPolicy returns the policy registered under name.
func NewOverallPolicy(name string) (OverallPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicySimple:
		return SimpleAverage{}, nil
	case PolicyWeighted:
		return Weighted{}, nil
	default:
		return nil, errors.Errorf("unknown overall policy %q", name)
	}
}

// SimpleAverage is round(mean(percent)) over the core systems present in the snapshot.
// When no core system is present every category counts.
type SimpleAverage struct{}

func (SimpleAverage) Name() string { return PolicySimple }

func (SimpleAverage) Overall(catalog Catalog, categories []CategorySnapshot) int {
	var sum float64
	var n int
	for _, c := range categories {
		if sys, ok := catalog.Lookup(c.ID); ok && sys.Core {
			sum += Clamp(c.FocusPercent)
			n++
		}
	}
	if n == 0 {
		for _, c := range categories {
			sum += Clamp(c.FocusPercent)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return Round(sum / float64(n))
}

// Weighted is round(stable% * 0.6 + adoptionAvg * 0.4). The stable share counts every
// category; the adoption average skips device-coverage-only systems since their number
// measures device compliance rather than user adoption.
type Weighted struct{}

func (Weighted) Name() string { return PolicyWeighted }

func (Weighted) Overall(catalog Catalog, categories []CategorySnapshot) int {
	if len(categories) == 0 {
		return 0
	}
	var stable int
	var sum float64
	var n int
	for _, c := range categories {
		if c.DerivedStatus() == StatusStable {
			stable++
		}
		if sys, ok := catalog.Lookup(c.ID); ok && sys.DeviceCoverageOnly {
			continue
		}
		sum += Clamp(c.FocusPercent)
		n++
	}
	stablePct := float64(stable) / float64(len(categories)) * 100
	var adoptionAvg float64
	if n > 0 {
		adoptionAvg = sum / float64(n)
	}
	return Round(stablePct*0.6 + adoptionAvg*0.4)
}

// Delta sources
const (
	DeltaPinned    = "pinned"
	DeltaPrevious  = "previous"
	DeltaEstimated = "estimated"
)

// Delta is a week-over-week change of the overall score.
type Delta struct {
	This   int    `json:"thisWeek"`
	Last   int    `json:"lastWeek"`
	Value  int    `json:"delta"`
	Source string `json:"source"` // pinned | previous | estimated
}

// WeekOverWeek computes this-last. last comes from the snapshot's pinned
// lastWeekOverallPercent when present, then the previous stored week, then the
// this-3 placeholder.
func WeekOverWeek(this int, current WeeklySnapshot, previous *int) Delta {
	d := Delta{This: this}
	switch pinned, ok := current.Pinned(MetricLastWeekOverall); {
	case ok:
		d.Last, d.Source = Round(Clamp(pinned)), DeltaPinned
	case previous != nil:
		d.Last, d.Source = *previous, DeltaPrevious
	default:
		d.Last, d.Source = this-PlaceholderDrop, DeltaEstimated
	}
	d.Value = d.This - d.Last
	return d
}
