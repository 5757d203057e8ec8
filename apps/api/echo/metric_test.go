package echoapi_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/user"
)

func Test_metricApi(t *testing.T) {
	app := setup(t)
	staff := createUser(t, app.usrRepo, "Staff", "staff", "staff@school.test", "", []string{user.RoleStaff}, true)
	exec := createUser(t, app.usrRepo, "Exec", "exec", "exec@school.test", "", []string{user.RoleExecutive}, true)
	staffToken, execToken := getToken(t, app.conf, staff), getToken(t, app.conf, exec)

	runHTTPTests(t, app, []httpTest{
		{
			name: "executive cannot record", method: http.MethodPost, path: "/api/metrics", token: execToken,
			body: []byte(`{"date":"2026-10-13","system_key":"mdm","metric_key":"coverage_percent","metric_value":90}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "value required", method: http.MethodPost, path: "/api/metrics", token: staffToken,
			body:     []byte(`{"date":"2026-10-13","system_key":"mdm","metric_key":"coverage_percent"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"metric_value": "this field is required"}),
		},
		{
			name: "meta must be an object", method: http.MethodPost, path: "/api/metrics", token: staffToken,
			body:     []byte(`{"date":"2026-10-13","system_key":"mdm","metric_key":"coverage_percent","metric_value":90,"meta":[1]}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"meta": "meta must be a JSON object"}),
		},
		{
			name: "record", method: http.MethodPost, path: "/api/metrics", token: staffToken,
			body:     []byte(`{"date":"2026-10-13","system_key":"mdm","metric_key":"Coverage_Percent","metric_value":90}`),
			wantCode: http.StatusCreated,
		},
		{
			name: "overwrite", method: http.MethodPost, path: "/api/metrics", token: staffToken,
			body:     []byte(`{"date":"2026-10-13","system_key":"MDM","metric_key":"coverage_percent","metric_value":93}`),
			wantCode: http.StatusCreated,
		},
		{name: "latest needs auth", path: "/api/metrics/latest", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	})

	t.Run("latest", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/metrics/latest", execToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Items []health.MetricRow `json:"items"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "MDM", resp.Items[0].SystemKey)
		assert.Equal(t, health.MetricCoveragePercent, resp.Items[0].MetricKey)
		assert.Equal(t, 93.0, resp.Items[0].MetricValue)
		assert.Equal(t, health.SourceManual, resp.Items[0].Source)
	})

	t.Run("last updated", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/systems/last-updated", execToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Items []health.SystemUpdate `json:"items"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "MDM", resp.Items[0].SystemKey)
		assert.False(t, resp.Items[0].LastUpdated.IsZero())
	})

	t.Run("systems", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/systems", execToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{"items": health.DefaultCatalog().Systems}),
		}, rec)
	})

	t.Run("prometheus", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/metrics")
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.Contains(text, `edupulse_http_requests_total{method="POST",route="/api/metrics",status="201"} 2`), text)
		assert.Contains(t, text, `edupulse_http_requests_total{method="POST",route="/api/metrics",status="403"} 1`)
		assert.Contains(t, text, "edupulse_live_clients 0")
	})
}
