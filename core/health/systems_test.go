package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	var core []string
	for _, sys := range catalog.Core() {
		core = append(core, sys.Key)
	}
	assert.Equal(t, []string{"MDM", "Toddle", "LACdrop", "GoogleWorkspace"}, core)

	tests := []struct {
		ref     string
		wantKey string
		wantOK  bool
	}{
		{ref: "LACdrop", wantKey: "LACdrop", wantOK: true},
		{ref: "lacdrop", wantKey: "LACdrop", wantOK: true},
		{ref: "google-workspace", wantKey: "GoogleWorkspace", wantOK: true},
		{ref: "Google Workspace", wantKey: "GoogleWorkspace", wantOK: true},
		{ref: "library-system", wantKey: "Library", wantOK: true},
		{ref: "printers"},
		{ref: ""},
	}
	for _, tt := range tests {
		sys, ok := catalog.Lookup(tt.ref)
		assert.Equal(t, tt.wantOK, ok, tt.ref)
		assert.Equal(t, tt.wantKey, sys.Key, tt.ref)
	}

	mdm, _ := catalog.Lookup("mdm")
	assert.Equal(t, MetricCoveragePercent, mdm.PrimaryMetricKey())
	assert.True(t, mdm.DeviceCoverageOnly)
}

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte("systems:\n  - key: Printers\n"))
	require.NoError(t, err)
	assert.Equal(t, []System{{Key: "Printers", Label: "Printers", Category: CategoryAdoption}}, catalog.Systems)

	_, err = ParseCatalog([]byte("systems:\n  - key: A\n  - key: a\n"))
	assert.EqualError(t, err, `system "a": duplicate key`)

	_, err = ParseCatalog([]byte("systems:\n  - key: A\n    category: vibes\n"))
	assert.EqualError(t, err, `system "A": unknown category "vibes"`)

	_, err = ParseCatalog([]byte("systems:\n  - label: nameless\n"))
	assert.EqualError(t, err, "system #1: missing key")
}
