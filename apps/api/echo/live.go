package echoapi

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/weekly"
	eventsvc "github.com/trezcool/edupulse/services/events"
)

const (
	defaultLiveInterval = 30 * time.Second
	liveWriteTimeout    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// LiveMessage is pushed to /api/live clients on connect, on every tick and on every snapshot change.
type LiveMessage struct {
	Type      string                `json:"type"`
	Event     *weekly.SnapshotEvent `json:"event,omitempty"`
	Dashboard health.Dashboard      `json:"dashboard"`
}

type liveApi struct {
	svc      *weekly.Service
	live     *eventsvc.Broadcaster
	metrics  *apiMetrics
	interval time.Duration
	logger   core.Logger
}

func registerLiveAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *weekly.Service,
	live *eventsvc.Broadcaster,
	metrics *apiMetrics,
	interval time.Duration,
	logger core.Logger,
) {
	if interval <= 0 {
		interval = defaultLiveInterval
	}
	api := liveApi{svc: svc, live: live, metrics: metrics, interval: interval, logger: logger}
	g.GET("/live", api.serve, jwt)
}

func (api *liveApi) serve(ctx echo.Context) error {
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading to websocket")
	}
	defer func() { _ = conn.Close() }()

	api.metrics.liveClients.Inc()
	defer api.metrics.liveClients.Dec()

	var events <-chan weekly.SnapshotEvent
	if api.live != nil {
		ch, unsubscribe := api.live.Subscribe()
		defer unsubscribe()
		events = ch
	}

	// the client sends nothing; reading detects when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(api.interval)
	defer ticker.Stop()

	var ev *weekly.SnapshotEvent
	for {
		if err := api.push(conn, ev); err != nil {
			api.logger.Debug("live: closing connection", err)
			return nil
		}
		ev = nil

		select {
		case <-closed:
			return nil
		case <-ticker.C:
		case e := <-events:
			ev = &e
		}
	}
}

func (api *liveApi) push(conn *websocket.Conn, ev *weekly.SnapshotEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), liveWriteTimeout)
	defer cancel()

	d, err := api.svc.Dashboard(ctx)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	api.metrics.observeDashboard(d)

	if err = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	return conn.WriteJSON(LiveMessage{Type: "dashboard", Event: ev, Dashboard: d})
}
