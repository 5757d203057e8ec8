package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    WeeklySnapshot
		wantErr bool
	}{
		{name: "empty", in: "", want: WeeklySnapshot{Categories: []CategorySnapshot{}, Alerts: []string{}}},
		{name: "null", in: "null", want: WeeklySnapshot{Categories: []CategorySnapshot{}, Alerts: []string{}}},
		{name: "not an object", in: "[1,2]", want: WeeklySnapshot{Categories: []CategorySnapshot{}, Alerts: []string{}}, wantErr: true},
		{
			name: "full document",
			in: `{"weekLabel":"Oct 12 - Oct 18, 2026","asOfDateISO":"2026-10-15",
				"categories":[{"id":"mdm","name":"MDM","status":"attention","focusPercent":74.5,"headline":"74% coverage","metrics":{"enrolled":410,"total":550}}],
				"alerts":["MDM enrollment lagging",""],"metrics":{"lastWeekOverallPercent":80}}`,
			want: WeeklySnapshot{
				WeekLabel:   "Oct 12 - Oct 18, 2026",
				AsOfDateISO: "2026-10-15",
				Categories: []CategorySnapshot{{
					ID: "mdm", Name: "MDM", RecordedStatus: StatusAttention, FocusPercent: 74.5, Headline: "74% coverage",
					Metrics: map[string]float64{"enrolled": 410, "total": 550},
				}},
				Alerts:  []string{"MDM enrollment lagging"},
				Metrics: map[string]float64{MetricLastWeekOverall: 80},
			},
		},
		{
			name: "wrapped and string encoded",
			in:   `"{\"snapshot\":{\"categories\":[{\"name\":\"Google Workspace\",\"focusPercent\":120}]}}"`,
			want: WeeklySnapshot{
				Categories: []CategorySnapshot{{ID: "google-workspace", Name: "Google Workspace", RecordedStatus: StatusStable, FocusPercent: 100}},
				Alerts:     []string{},
			},
		},
		{
			name: "duplicate ids keep the first",
			in:   `{"categories":[{"id":"toddle","focusPercent":50},{"id":"toddle","focusPercent":90}]}`,
			want: WeeklySnapshot{
				Categories: []CategorySnapshot{{ID: "toddle", RecordedStatus: StatusCritical, FocusPercent: 50}},
				Alerts:     []string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSnapshot([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeSnapshot(t *testing.T) {
	s := WeeklySnapshot{
		WeekLabel: "Oct 12 - Oct 18, 2026",
		Categories: []CategorySnapshot{
			{ID: "lacdrop", Name: "LACdrop", FocusPercent: 143},
			{ID: "lacdrop", Name: "dup", FocusPercent: 10},
		},
	}
	b, err := EncodeSnapshot(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, []interface{}{}, raw["alerts"])
	cats := raw["categories"].([]interface{})
	require.Len(t, cats, 1)
	cat := cats[0].(map[string]interface{})
	assert.Equal(t, 100.0, cat["focusPercent"])
	assert.Equal(t, "STABLE", cat["status"])

	back, err := DecodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, s.Normalize(), back)
}
