package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantKind MetaKind
		wantPct  float64
		wantOK   bool
		wantText string
	}{
		{name: "empty", in: `{}`, wantKind: MetaNone},
		{name: "pair", in: `{"active":45,"total":50}`, wantKind: MetaPair, wantPct: 90, wantOK: true},
		{name: "pair as strings", in: `{"active":"30","total":"40","note":"term 1"}`, wantKind: MetaPair, wantPct: 75, wantOK: true, wantText: "term 1"},
		{name: "pair with zero total", in: `{"active":3,"total":0}`, wantKind: MetaPair},
		{name: "note", in: `{"note":"migrated to v2"}`, wantKind: MetaNote, wantText: "migrated to v2"},
		{name: "raw", in: `{"active":"lots","vendor":"acme"}`, wantKind: MetaRaw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Meta
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.Equal(t, tt.wantKind, m.Kind)
			assert.Equal(t, tt.wantText, m.Text)
			pct, ok := m.Percent()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPct, pct)
		})
	}
}

func TestMeta_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(MetricRow{SystemKey: "MDM", Meta: Meta{Kind: MetaPair, Active: 3, Total: 4, Text: "x"}})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, map[string]interface{}{"active": 3.0, "total": 4.0, "note": "x"}, raw["meta"])

	b, err = json.Marshal(MetricRow{})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Nil(t, raw["meta"])
}
