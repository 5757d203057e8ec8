package echoapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/edupulse/apps/api/echo"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
)

func Test_liveApi(t *testing.T) {
	app := setup(t)
	exec := createUser(t, app.usrRepo, "Exec", "exec", "exec@school.test", "", []string{user.RoleExecutive}, true)

	ts := httptest.NewServer(app.srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"

	t.Run("token required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("pushes on connect and on change", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, app.conf, exec), nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var msg echoapi.LiveMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "dashboard", msg.Type)
		assert.Nil(t, msg.Event)
		assert.Equal(t, "2026-10-12", msg.Dashboard.WeekStart)

		snap, err := health.EncodeSnapshot(health.WeeklySnapshot{
			Categories: []health.CategorySnapshot{{ID: "toddle", Name: "Toddle", FocusPercent: 90, RecordedStatus: health.StatusStable}},
		})
		require.NoError(t, err)
		_, err = app.weeklySvc.Save(context.Background(), weekly.SaveWeek{WeekStart: "2026-10-12", Snapshot: snap})
		require.NoError(t, err)

		require.NoError(t, conn.ReadJSON(&msg))
		require.NotNil(t, msg.Event)
		assert.Equal(t, weekly.EventSaved, msg.Event.Type)
		assert.Equal(t, "2026-10-12", msg.Event.WeekStart)
		assert.Equal(t, msg.Event.OverallPercent, msg.Dashboard.OverallPercent)
	})
}
