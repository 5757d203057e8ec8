package weekly

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
)

type Service struct {
	repo         Repository
	metrics      MetricSource
	agg          *health.Aggregator
	events       EventPublisher
	logger       core.Logger
	historyLimit int
	nowFunc      func() time.Time
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, SnapshotEvent) error { return nil }

// NewService returns a weekly snapshot service. A nil events publisher drops events.
func NewService(
	repo Repository,
	metrics MetricSource,
	agg *health.Aggregator,
	events EventPublisher,
	logger core.Logger,
	historyLimit int,
) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	if historyLimit <= 0 {
		historyLimit = 52
	}
	return &Service{
		repo:         repo,
		metrics:      metrics,
		agg:          agg,
		events:       events,
		logger:       logger,
		historyLimit: historyLimit,
		nowFunc:      time.Now,
	}
}

// SetClock replaces the clock used to find the current week.
func (svc *Service) SetClock(now func() time.Time) {
	svc.nowFunc = now
	svc.agg = svc.agg.WithClock(now)
}

func (svc *Service) Aggregator() *health.Aggregator { return svc.agg }

func (svc *Service) decode(sw health.StoredWeek) CurrentWeek {
	snap, err := health.DecodeSnapshot(sw.SnapshotJSON)
	if err != nil {
		svc.logger.Warn("weekly: undecodable snapshot for week "+sw.WeekStart, err)
	}
	return CurrentWeek{WeekStart: sw.WeekStart, WeekEnd: sw.WeekEnd, Snapshot: snap}
}

// Current returns the snapshot of the present week, or the latest stored week before it.
// With nothing stored it returns an empty snapshot for the present week.
func (svc *Service) Current(ctx context.Context) (CurrentWeek, error) {
	week := health.WeekOf(svc.nowFunc())
	sw, err := svc.repo.LatestWeek(ctx, week.StartISO())
	if err != nil {
		if !core.IsNotFound(err) {
			return CurrentWeek{}, errors.Wrap(err, "finding latest week")
		}
		return CurrentWeek{
			WeekStart: week.StartISO(),
			WeekEnd:   week.EndISO(),
			Snapshot: health.WeeklySnapshot{
				WeekLabel:  week.Label(),
				Categories: []health.CategorySnapshot{},
				Alerts:     []string{},
			},
		}, nil
	}
	return svc.decode(sw), nil
}

// Get returns the snapshot stored for weekStart.
func (svc *Service) Get(ctx context.Context, weekStart string) (CurrentWeek, error) {
	sw, err := svc.repo.GetWeek(ctx, weekStart)
	if err != nil {
		if core.IsNotFound(err) {
			return CurrentWeek{}, ErrNotFound
		}
		return CurrentWeek{}, errors.Wrap(err, "finding week")
	}
	return svc.decode(sw), nil
}

// Save persists a validated SaveWeek, overwriting any snapshot of the same week.
func (svc *Service) Save(ctx context.Context, req SaveWeek) (CurrentWeek, error) {
	snap, err := parseSnapshot(req.Snapshot)
	if err != nil {
		return CurrentWeek{}, core.NewValidationError(err, core.FieldError{Field: "snapshot", Error: errSnapshot})
	}
	start, end := req.bounds()
	return svc.persist(ctx, EventSaved, start, end, snap)
}

// Rollup folds the daily metrics of the week containing date into that week's snapshot.
func (svc *Service) Rollup(ctx context.Context, date string) (CurrentWeek, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return CurrentWeek{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "must be a date formatted as YYYY-MM-DD"})
	}
	week := health.WeekOf(d)

	rows, err := svc.metrics.ForWeek(ctx, week)
	if err != nil {
		return CurrentWeek{}, errors.Wrap(err, "loading week metrics")
	}

	var existing *health.WeeklySnapshot
	if cur, err := svc.Get(ctx, week.StartISO()); err == nil {
		existing = &cur.Snapshot
	} else if errors.Cause(err) != ErrNotFound {
		return CurrentWeek{}, err
	}

	snap := health.Rollup(svc.agg.Catalog(), week, rows, existing)
	return svc.persist(ctx, EventRolledUp, week.StartISO(), week.EndISO(), snap)
}

func (svc *Service) Delete(ctx context.Context, weekStart string) error {
	n, err := svc.repo.DeleteWeek(ctx, weekStart)
	if err != nil {
		return errors.Wrap(err, "deleting week")
	}
	if n == 0 {
		return ErrNotFound
	}
	svc.publish(ctx, SnapshotEvent{Type: EventDeleted, WeekStart: weekStart, Policy: svc.agg.Policy().Name()})
	return nil
}

// UpsertCategory replaces (or appends) one category of the week starting on weekStart.
// A week without a snapshot gets a new one.
func (svc *Service) UpsertCategory(ctx context.Context, weekStart string, c health.CategorySnapshot) (CurrentWeek, error) {
	cur, err := svc.Get(ctx, weekStart)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return CurrentWeek{}, err
		}
		d, err := core.ParseDate(weekStart)
		if err != nil {
			return CurrentWeek{}, core.NewValidationError(err, core.FieldError{Field: "week_start", Error: "must be a date formatted as YYYY-MM-DD"})
		}
		end := d.AddDate(0, 0, 6)
		cur = CurrentWeek{
			WeekStart: weekStart,
			WeekEnd:   core.FormatDate(end),
			Snapshot:  health.WeeklySnapshot{WeekLabel: health.WeekLabel(d, end)},
		}
	}
	snap := health.UpsertCategory(cur.Snapshot, c)
	return svc.persist(ctx, EventCategoryUpdated, cur.WeekStart, cur.WeekEnd, snap)
}

// RemoveCategory drops one category of the week starting on weekStart.
func (svc *Service) RemoveCategory(ctx context.Context, weekStart, id string) (CurrentWeek, error) {
	cur, err := svc.Get(ctx, weekStart)
	if err != nil {
		return CurrentWeek{}, err
	}
	snap := health.RemoveCategory(cur.Snapshot, id)
	return svc.persist(ctx, EventCategoryRemoved, cur.WeekStart, cur.WeekEnd, snap)
}

func (svc *Service) persist(ctx context.Context, evType, start, end string, snap health.WeeklySnapshot) (CurrentWeek, error) {
	snap = snap.Normalize()
	if snap.WeekLabel == "" {
		if s, err := core.ParseDate(start); err == nil {
			if e, err := core.ParseDate(end); err == nil {
				snap.WeekLabel = health.WeekLabel(s, e)
			}
		}
	}
	b, err := health.EncodeSnapshot(snap)
	if err != nil {
		return CurrentWeek{}, err
	}

	sw, err := svc.repo.SaveWeek(ctx, health.StoredWeek{
		WeekStart:    start,
		WeekEnd:      end,
		SnapshotJSON: b,
		CreatedAt:    svc.nowFunc().UTC(),
	})
	if err != nil {
		return CurrentWeek{}, errors.Wrap(err, "saving week")
	}

	row := svc.agg.Row(sw.ID, mustDate(sw.WeekStart), mustDate(sw.WeekEnd), snap)
	svc.publish(ctx, SnapshotEvent{
		Type:           evType,
		WeekStart:      sw.WeekStart,
		WeekEnd:        sw.WeekEnd,
		OverallPercent: row.OverallPercent,
		Status:         row.Status,
		Policy:         svc.agg.Policy().Name(),
	})
	return CurrentWeek{WeekStart: sw.WeekStart, WeekEnd: sw.WeekEnd, Snapshot: snap}, nil
}

func (svc *Service) publish(ctx context.Context, ev SnapshotEvent) {
	ev.OccurredAt = svc.nowFunc().UTC()
	if err := svc.events.Publish(ctx, ev); err != nil {
		svc.logger.Error("weekly: publishing "+ev.Type, errors.Wrap(err, "publishing snapshot event"))
	}
}

func (svc *Service) limit(n int) int {
	if n <= 0 || n > svc.historyLimit {
		return svc.historyLimit
	}
	return n
}

// History returns the raw stored weeks, newest first.
func (svc *Service) History(ctx context.Context, limit int) ([]health.StoredWeek, error) {
	rows, err := svc.repo.ListWeeks(ctx, svc.limit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "listing weeks")
	}
	if rows == nil {
		rows = []health.StoredWeek{}
	}
	return rows, nil
}

// Trends aggregates the stored weeks into week rows, month groups and summary statistics.
func (svc *Service) Trends(ctx context.Context, limit int) (health.History, error) {
	rows, err := svc.History(ctx, limit)
	if err != nil {
		return health.History{}, err
	}
	h := svc.agg.Build(rows)
	for _, w := range h.Warnings {
		svc.logger.Warn("weekly: " + w)
	}
	return h, nil
}

// Dashboard builds the KPI view of the current week.
func (svc *Service) Dashboard(ctx context.Context) (health.Dashboard, error) {
	cur, err := svc.Current(ctx)
	if err != nil {
		return health.Dashboard{}, err
	}
	start := mustDate(cur.WeekStart)
	week := health.Week{Start: start, End: mustDate(cur.WeekEnd)}

	var previous *int
	before := core.FormatDate(start.AddDate(0, 0, -1))
	if sw, err := svc.repo.LatestWeek(ctx, before); err == nil {
		prev := svc.agg.Overall(svc.decode(sw).Snapshot)
		previous = &prev
	} else if !core.IsNotFound(err) {
		return health.Dashboard{}, errors.Wrap(err, "finding previous week")
	}

	updates, err := svc.metrics.LastUpdated(ctx)
	if err != nil {
		return health.Dashboard{}, errors.Wrap(err, "loading last updates")
	}
	return svc.agg.Dashboard(week, cur.Snapshot, previous, updates), nil
}

func mustDate(s string) time.Time {
	d, _ := core.ParseDate(s)
	return d
}
