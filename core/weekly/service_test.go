package weekly_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/weekly"
	inmemdb "github.com/trezcool/edupulse/storage/database/inmem"
)

var october15 = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	events []weekly.SnapshotEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev weekly.SnapshotEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc     *weekly.Service
	metrics *metric.Service
	events  *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	catalog := health.DefaultCatalog()
	metrics := metric.NewService(inmemdb.NewMetricRepository(db), catalog)
	events := new(recordingPublisher)
	svc := weekly.NewService(
		inmemdb.NewWeeklyRepository(db),
		metrics,
		health.NewAggregator(catalog, health.SimpleAverage{}),
		events,
		core.NewDiscardLogger(),
		4,
	)
	svc.SetClock(func() time.Time { return october15 })
	return fixture{svc: svc, metrics: metrics, events: events}
}

func snapshotJSON(t *testing.T, s health.WeeklySnapshot) json.RawMessage {
	t.Helper()
	b, err := health.EncodeSnapshot(s)
	require.NoError(t, err)
	return b
}

func toddleWeek(t *testing.T, start string, pct float64) weekly.SaveWeek {
	t.Helper()
	return weekly.SaveWeek{
		WeekStart: start,
		Snapshot: snapshotJSON(t, health.WeeklySnapshot{
			Categories: []health.CategorySnapshot{{ID: "toddle", Name: "Toddle", FocusPercent: pct, RecordedStatus: health.Classify(pct)}},
		}),
	}
}

func TestService_Current(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		fx := newFixture(t)
		cur, err := fx.svc.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2026-10-12", cur.WeekStart)
		assert.Equal(t, "2026-10-18", cur.WeekEnd)
		assert.Equal(t, "Oct 12 - Oct 18, 2026", cur.Snapshot.WeekLabel)
		assert.Empty(t, cur.Snapshot.Categories)
	})

	t.Run("falls back to the latest past week", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Save(ctx, toddleWeek(t, "2026-09-28", 70))
		require.NoError(t, err)
		_, err = fx.svc.Save(ctx, toddleWeek(t, "2026-10-05", 81))
		require.NoError(t, err)
		_, err = fx.svc.Save(ctx, toddleWeek(t, "2026-10-19", 99)) // future week
		require.NoError(t, err)

		cur, err := fx.svc.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2026-10-05", cur.WeekStart)
		assert.Equal(t, 81.0, cur.Snapshot.Categories[0].FocusPercent)
	})

	t.Run("current week", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Save(ctx, toddleWeek(t, "2026-10-12", 88))
		require.NoError(t, err)

		cur, err := fx.svc.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2026-10-12", cur.WeekStart)
		assert.Equal(t, "Oct 12 - Oct 18, 2026", cur.Snapshot.WeekLabel)
	})
}

func TestService_Save(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	req := toddleWeek(t, "", 75)
	req.WeekEnd = "2026-10-11"
	cur, err := fx.svc.Save(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-05", cur.WeekStart)
	assert.Equal(t, "2026-10-11", cur.WeekEnd)

	// overwrite
	_, err = fx.svc.Save(ctx, toddleWeek(t, "2026-10-05", 64))
	require.NoError(t, err)
	got, err := fx.svc.Get(ctx, "2026-10-05")
	require.NoError(t, err)
	assert.Equal(t, 64.0, got.Snapshot.Categories[0].FocusPercent)

	rows, err := fx.svc.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.Len(t, fx.events.events, 2)
	ev := fx.events.events[1]
	assert.Equal(t, weekly.EventSaved, ev.Type)
	assert.Equal(t, 64, ev.OverallPercent)
	assert.Equal(t, health.StatusCritical, ev.Status)
	assert.Equal(t, health.PolicySimple, ev.Policy)

	_, err = fx.svc.Save(ctx, weekly.SaveWeek{WeekStart: "2026-10-05", Snapshot: json.RawMessage(`[1,2]`)})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "snapshot", verr.Fields[0].Field)
}

func TestService_Save_publishFailure(t *testing.T) {
	fx := newFixture(t)
	fx.events.err = errors.New("broker down")

	_, err := fx.svc.Save(context.Background(), toddleWeek(t, "2026-10-12", 90))
	assert.NoError(t, err)
	assert.Len(t, fx.events.events, 1)
}

func TestService_Rollup(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	value := func(v float64) *float64 { return &v }
	for _, nm := range []metric.NewMetric{
		{Date: "2026-10-13", SystemKey: "mdm", MetricKey: "enrolled_devices", MetricValue: value(200), Meta: json.RawMessage(`{"active":200,"total":400}`)},
		{Date: "2026-10-14", SystemKey: "Toddle", MetricKey: "usage_percent", MetricValue: value(75)},
		{Date: "2026-10-20", SystemKey: "Toddle", MetricKey: "usage_percent", MetricValue: value(10)}, // next week
	} {
		_, err := fx.metrics.Record(ctx, nm)
		require.NoError(t, err)
	}

	_, err := fx.svc.Rollup(ctx, "not-a-date")
	assert.Error(t, err)

	cur, err := fx.svc.Rollup(ctx, "2026-10-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-12", cur.WeekStart)
	assert.Equal(t, "2026-10-18", cur.WeekEnd)
	assert.Equal(t, "2026-10-14", cur.Snapshot.AsOfDateISO)

	require.Len(t, cur.Snapshot.Categories, 2)
	mdm, toddle := cur.Snapshot.Categories[0], cur.Snapshot.Categories[1]
	assert.Equal(t, "mdm", mdm.ID)
	assert.Equal(t, 50.0, mdm.FocusPercent)
	assert.Equal(t, health.StatusCritical, mdm.RecordedStatus)
	assert.Equal(t, "50% device coverage (200 of 400)", mdm.Headline)
	assert.Equal(t, "toddle", toddle.ID)
	assert.Equal(t, "75% usage", toddle.Headline)
	assert.Equal(t, []string{"MDM is below 70% (50%)"}, cur.Snapshot.Alerts)

	// a second rollup keeps a single alert per system
	cur, err = fx.svc.Rollup(ctx, "2026-10-12")
	require.NoError(t, err)
	assert.Len(t, cur.Snapshot.Alerts, 1)
	assert.Equal(t, []string{weekly.EventRolledUp, weekly.EventRolledUp}, fx.events.types())
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	err := fx.svc.Delete(ctx, "2026-10-12")
	assert.True(t, core.IsNotFound(err))

	_, err = fx.svc.Save(ctx, toddleWeek(t, "2026-10-12", 90))
	require.NoError(t, err)
	require.NoError(t, fx.svc.Delete(ctx, "2026-10-12"))

	_, err = fx.svc.Get(ctx, "2026-10-12")
	assert.Equal(t, weekly.ErrNotFound, err)
	assert.Equal(t, []string{weekly.EventSaved, weekly.EventDeleted}, fx.events.types())
}

func TestService_Categories(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.RemoveCategory(ctx, "2026-10-12", "toddle")
	assert.True(t, core.IsNotFound(err))

	pct := 92.0
	req := weekly.CategoryRequest{WeekStart: "2026-10-12", Name: "Google Workspace", FocusPercent: &pct}
	cur, err := fx.svc.UpsertCategory(ctx, req.WeekStart, req.Category())
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", cur.WeekEnd)
	assert.Equal(t, "Oct 12 - Oct 18, 2026", cur.Snapshot.WeekLabel)
	require.Len(t, cur.Snapshot.Categories, 1)
	assert.Equal(t, "google-workspace", cur.Snapshot.Categories[0].ID)
	assert.Equal(t, health.StatusStable, cur.Snapshot.Categories[0].RecordedStatus)

	pct = 40
	req.Status = "attention"
	cur, err = fx.svc.UpsertCategory(ctx, req.WeekStart, req.Category())
	require.NoError(t, err)
	require.Len(t, cur.Snapshot.Categories, 1)
	assert.Equal(t, 40.0, cur.Snapshot.Categories[0].FocusPercent)
	assert.Equal(t, health.StatusAttention, cur.Snapshot.Categories[0].RecordedStatus)

	cur, err = fx.svc.RemoveCategory(ctx, "2026-10-12", "google-workspace")
	require.NoError(t, err)
	assert.Empty(t, cur.Snapshot.Categories)
}

func TestService_Trends(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	for i, pct := range []float64{60, 65, 70, 75, 80, 85} {
		start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i)
		_, err := fx.svc.Save(ctx, toddleWeek(t, core.FormatDate(start), pct))
		require.NoError(t, err)
	}

	h, err := fx.svc.Trends(ctx, 100) // clamped to the history limit
	require.NoError(t, err)
	require.Len(t, h.Weeks, 4)
	assert.Equal(t, "2026-10-12", h.Weeks[0].WeekStart)
	assert.Equal(t, 85, h.Weeks[0].OverallPercent)
	require.NotNil(t, h.Weeks[0].Delta)
	assert.Equal(t, 5, *h.Weeks[0].Delta)
	assert.Nil(t, h.Weeks[3].Delta)

	h, err = fx.svc.Trends(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, h.Weeks, 2)
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	d, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, health.DeltaEstimated, d.Delta.Source)
	assert.Empty(t, d.Tiles)

	_, err = fx.svc.Save(ctx, toddleWeek(t, "2026-10-05", 60))
	require.NoError(t, err)
	_, err = fx.svc.Save(ctx, toddleWeek(t, "2026-10-12", 88))
	require.NoError(t, err)

	usage := 88.0
	_, err = fx.metrics.Record(ctx, metric.NewMetric{Date: "2026-10-15", SystemKey: "toddle", MetricKey: "usage_percent", MetricValue: &usage})
	require.NoError(t, err)

	d, err = fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-12", d.WeekStart)
	assert.Equal(t, 88, d.OverallPercent)
	assert.Equal(t, health.Delta{This: 88, Last: 60, Value: 28, Source: health.DeltaPrevious}, d.Delta)
	assert.Equal(t, health.StatusStable, d.Status)
	require.Len(t, d.Tiles, 1)
	assert.Equal(t, "Toddle", d.Tiles[0].SystemKey)
	assert.NotNil(t, d.Tiles[0].LastUpdated)
}
