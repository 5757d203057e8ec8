package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeSystems() []CategorySnapshot {
	return []CategorySnapshot{
		{ID: "toddle", Name: "Toddle", RecordedStatus: StatusStable, FocusPercent: 96},
		{ID: "lacdrop", Name: "LACdrop", RecordedStatus: StatusAttention, FocusPercent: 70},
		{ID: "googleworkspace", Name: "Google Workspace", RecordedStatus: StatusStable, FocusPercent: 80},
	}
}

func TestSimpleAverage(t *testing.T) {
	catalog := DefaultCatalog()
	policy := SimpleAverage{}

	cats := threeSystems()
	assert.Equal(t, 82, policy.Overall(catalog, cats))

	statuses := make([]Status, 0, len(cats))
	for _, c := range cats {
		statuses = append(statuses, c.DerivedStatus())
	}
	assert.Equal(t, StatusAttention, Worst(statuses...))

	// non-core systems do not move the score
	withLibrary := append(threeSystems(), CategorySnapshot{ID: "library", FocusPercent: 10})
	assert.Equal(t, 82, policy.Overall(catalog, withLibrary))

	// only non-core systems: every category counts
	assert.Equal(t, 30, policy.Overall(catalog, []CategorySnapshot{{ID: "library", FocusPercent: 20}, {ID: "printers", FocusPercent: 40}}))

	assert.Equal(t, 0, policy.Overall(catalog, nil))
}

func TestWeighted(t *testing.T) {
	catalog := DefaultCatalog()
	cats := []CategorySnapshot{
		{ID: "mdm", FocusPercent: 40},
		{ID: "toddle", FocusPercent: 90},
		{ID: "lacdrop", FocusPercent: 70},
		{ID: "googleworkspace", FocusPercent: 80},
	}
	// stable: toddle, gws -> 50%; adoption avg excludes MDM: (90+70+80)/3 = 80
	// 50*0.6 + 80*0.4 = 62
	assert.Equal(t, 62, Weighted{}.Overall(catalog, cats))
	assert.Equal(t, 0, Weighted{}.Overall(catalog, nil))
}

func TestNewOverallPolicy(t *testing.T) {
	p, err := NewOverallPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySimple, p.Name())

	p, err = NewOverallPolicy(" Weighted ")
	require.NoError(t, err)
	assert.Equal(t, PolicyWeighted, p.Name())

	_, err = NewOverallPolicy("median")
	assert.Error(t, err)
}

func TestWeekOverWeek(t *testing.T) {
	prev := 75
	pinned := WeeklySnapshot{Metrics: map[string]float64{MetricLastWeekOverall: 70}}

	tests := []struct {
		name     string
		current  WeeklySnapshot
		previous *int
		want     Delta
	}{
		{name: "pinned wins", current: pinned, previous: &prev, want: Delta{This: 82, Last: 70, Value: 12, Source: DeltaPinned}},
		{name: "previous week", previous: &prev, want: Delta{This: 82, Last: 75, Value: 7, Source: DeltaPrevious}},
		{name: "placeholder", want: Delta{This: 82, Last: 79, Value: 3, Source: DeltaEstimated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekOverWeek(82, tt.current, tt.previous))
		})
	}
}
