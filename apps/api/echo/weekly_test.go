package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
)

func toddleBody(t *testing.T, start string, pct float64) []byte {
	t.Helper()
	snap, err := health.EncodeSnapshot(health.WeeklySnapshot{
		Categories: []health.CategorySnapshot{{ID: "toddle", Name: "Toddle", FocusPercent: pct, RecordedStatus: health.Classify(pct)}},
	})
	require.NoError(t, err)
	return marchallObj(t, weekly.SaveWeek{WeekStart: start, Snapshot: snap})
}

func Test_weeklyApi_permissions(t *testing.T) {
	app := setup(t)
	exec := createUser(t, app.usrRepo, "Exec", "exec", "exec@school.test", "", []string{user.RoleExecutive}, true)
	execToken := getToken(t, app.conf, exec)

	runHTTPTests(t, app, []httpTest{
		{name: "read needs auth", path: "/api/weekly", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "executive reads", path: "/api/weekly", token: execToken, wantCode: http.StatusOK},
		{
			name: "executive cannot save", method: http.MethodPost, path: "/api/weekly", token: execToken,
			body: toddleBody(t, "2026-10-12", 90), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "executive cannot roll up", method: http.MethodPost, path: "/api/weekly/rollup", token: execToken,
			body: []byte(`{"date":"2026-10-15"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "executive cannot delete", method: http.MethodPost, path: "/api/weekly/delete", token: execToken,
			body: []byte(`{"week_start":"2026-10-12"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "history needs auth", path: "/api/history", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "dashboard needs auth", path: "/api/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	})
}

func Test_weeklyApi_saveAndRead(t *testing.T) {
	app := setup(t)
	staff := createUser(t, app.usrRepo, "Staff", "staff", "staff@school.test", "", []string{user.RoleStaff}, true)
	token := getToken(t, app.conf, staff)

	t.Run("empty current week", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/weekly", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var cur weekly.CurrentWeek
		decode(t, rec, &cur)
		assert.Equal(t, "2026-10-12", cur.WeekStart)
		assert.Equal(t, "2026-10-18", cur.WeekEnd)
		assert.Equal(t, "Oct 12 - Oct 18, 2026", cur.Snapshot.WeekLabel)
		assert.Empty(t, cur.Snapshot.Categories)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name: "bounds required", method: http.MethodPost, path: "/api/weekly", token: token, body: []byte(`{"snapshot":{}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"week_start": "one of week_start or week_end is required",
				"week_end":   "one of week_start or week_end is required",
			}),
		},
		{
			name: "bad date", method: http.MethodPost, path: "/api/weekly", token: token, body: []byte(`{"week_start":"12/10/2026"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"week_start": "must be a date formatted as YYYY-MM-DD"}),
		},
		{name: "save previous week", method: http.MethodPost, path: "/api/weekly", token: token, body: toddleBody(t, "2026-10-05", 60), wantCode: http.StatusOK},
		{name: "save current week", method: http.MethodPost, path: "/api/weekly", token: token, body: toddleBody(t, "2026-10-12", 88), wantCode: http.StatusOK},
		{
			name: "bad limit", path: "/api/history?limit=abc", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"limit": "limit must be a positive integer"}),
		},
		{
			name: "unknown week", path: "/api/weekly?week_start=2020-01-06", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: weekly.ErrNotFound.Error()}),
		},
	})

	t.Run("current week", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/weekly", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var cur weekly.CurrentWeek
		decode(t, rec, &cur)
		assert.Equal(t, "2026-10-12", cur.WeekStart)
		require.Len(t, cur.Snapshot.Categories, 1)
		assert.Equal(t, 88.0, cur.Snapshot.Categories[0].FocusPercent)
	})

	t.Run("history", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/history?limit=1", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Items []health.StoredWeek `json:"items"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "2026-10-12", resp.Items[0].WeekStart)
		assert.Equal(t, "2026-10-18", resp.Items[0].WeekEnd)
		assert.NotEmpty(t, resp.Items[0].ID)

		snap, err := health.DecodeSnapshot(resp.Items[0].SnapshotJSON)
		require.NoError(t, err)
		assert.Equal(t, 88.0, snap.Categories[0].FocusPercent)
	})

	t.Run("trends", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/history/trends", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var h health.History
		decode(t, rec, &h)
		require.Len(t, h.Weeks, 2)
		assert.Equal(t, 88, h.Weeks[0].OverallPercent)
		require.NotNil(t, h.Weeks[0].Delta)
		assert.Equal(t, 28, *h.Weeks[0].Delta)
	})

	t.Run("dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/dashboard", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var d health.Dashboard
		decode(t, rec, &d)
		assert.Equal(t, 88, d.OverallPercent)
		assert.Equal(t, health.Delta{This: 88, Last: 60, Value: 28, Source: health.DeltaPrevious}, d.Delta)
		assert.Equal(t, health.StatusStable, d.Status)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/weekly/delete", token, []byte(`{"week_start":"2026-10-12"}`))
		app.serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodPost, "/api/weekly/delete", token, []byte(`{"week_start":"2026-10-12"}`))
		app.serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		cur, err := app.weeklySvc.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2026-10-05", cur.WeekStart)
	})
}

func Test_weeklyApi_rollup(t *testing.T) {
	app := setup(t)
	admin := createUser(t, app.usrRepo, "Admin", "admin", "admin@school.test", "", []string{user.RoleAdmin}, true)
	token := getToken(t, app.conf, admin)

	runHTTPTests(t, app, []httpTest{
		{
			name: "record coverage", method: http.MethodPost, path: "/api/metrics", token: token,
			body:     []byte(`{"date":"2026-10-13","system_key":"mdm","metric_key":"enrolled_devices","metric_value":200,"source":"API","meta":{"active":200,"total":400}}`),
			wantCode: http.StatusCreated,
		},
		{
			name: "record usage", method: http.MethodPost, path: "/api/metrics", token: token,
			body:     []byte(`{"date":"2026-10-14","system_key":"Toddle","metric_key":"usage_percent","metric_value":75}`),
			wantCode: http.StatusCreated,
		},
		{
			name: "date required", method: http.MethodPost, path: "/api/weekly/rollup", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "this field is required"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/weekly/rollup", token, []byte(`{"date":"2026-10-15"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cur weekly.CurrentWeek
	decode(t, rec, &cur)
	assert.Equal(t, "2026-10-12", cur.WeekStart)
	require.Len(t, cur.Snapshot.Categories, 2)
	assert.Equal(t, "50% device coverage (200 of 400)", cur.Snapshot.Categories[0].Headline)
	assert.Equal(t, "75% usage", cur.Snapshot.Categories[1].Headline)
	assert.Equal(t, []string{"MDM is below 70% (50%)"}, cur.Snapshot.Alerts)
}

func Test_weeklyApi_categories(t *testing.T) {
	app := setup(t)
	staff := createUser(t, app.usrRepo, "Staff", "staff", "staff@school.test", "", []string{user.RoleStaff}, true)
	token := getToken(t, app.conf, staff)

	runHTTPTests(t, app, []httpTest{
		{
			name: "percent required", method: http.MethodPost, path: "/api/weekly/categories", token: token,
			body:     []byte(`{"week_start":"2026-10-12","name":"Google Workspace"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"focusPercent": "this field is required"}),
		},
		{
			name: "remove from missing week", method: http.MethodPost, path: "/api/weekly/categories/remove", token: token,
			body: []byte(`{"week_start":"2026-10-12","id":"toddle"}`), wantCode: http.StatusNotFound,
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/weekly/categories", token,
		[]byte(`{"week_start":"2026-10-12","name":"Google Workspace","focusPercent":40,"status":"attention"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cur weekly.CurrentWeek
	decode(t, rec, &cur)
	require.Len(t, cur.Snapshot.Categories, 1)
	assert.Equal(t, "google-workspace", cur.Snapshot.Categories[0].ID)
	assert.Equal(t, health.StatusAttention, cur.Snapshot.Categories[0].RecordedStatus)

	req, rec = newAuthRequest(http.MethodPost, "/api/weekly/categories/remove", token, []byte(`{"week_start":"2026-10-12","id":"google-workspace"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &cur)
	assert.Empty(t, cur.Snapshot.Categories)
}
