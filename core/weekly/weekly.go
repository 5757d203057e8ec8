package weekly

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
)

var (
	ErrNotFound = core.NewNotFoundError("weekly snapshot not found")

	errBoundsRequired = "one of week_start or week_end is required"
	errBoundsOrder    = "week_end must not be before week_start"
	errSnapshot       = "snapshot must be a JSON object"
)

// Event types
const (
	EventSaved           = "snapshot.saved"
	EventRolledUp        = "snapshot.rolled_up"
	EventDeleted         = "snapshot.deleted"
	EventCategoryUpdated = "snapshot.category_upserted"
	EventCategoryRemoved = "snapshot.category_removed"
)

type (
	Repository interface {
		// SaveWeek inserts w or overwrites the snapshot stored for w.WeekStart.
		SaveWeek(ctx context.Context, w health.StoredWeek, exec ...core.DBExecutor) (health.StoredWeek, error)
		GetWeek(ctx context.Context, weekStart string, exec ...core.DBExecutor) (health.StoredWeek, error)
		// LatestWeek returns the most recent week starting on or before onOrBefore.
		LatestWeek(ctx context.Context, onOrBefore string, exec ...core.DBExecutor) (health.StoredWeek, error)
		// ListWeeks returns up to limit weeks, newest first.
		ListWeeks(ctx context.Context, limit int, exec ...core.DBExecutor) ([]health.StoredWeek, error)
		DeleteWeek(ctx context.Context, weekStart string, exec ...core.DBExecutor) (int, error)
	}

	// MetricSource provides the daily rows a rollup folds.
	MetricSource interface {
		ForWeek(ctx context.Context, week health.Week) ([]health.MetricRow, error)
		LastUpdated(ctx context.Context) ([]health.SystemUpdate, error)
	}

	// EventPublisher announces snapshot changes to other systems.
	EventPublisher interface {
		Publish(ctx context.Context, ev SnapshotEvent) error
	}

	SnapshotEvent struct {
		Type           string        `json:"type"`
		WeekStart      string        `json:"week_start"`
		WeekEnd        string        `json:"week_end"`
		OverallPercent int           `json:"overallPercent"`
		Status         health.Status `json:"status"`
		Policy         string        `json:"policy"`
		OccurredAt     time.Time     `json:"occurred_at"`
	}
)

// CurrentWeek is a snapshot with its week boundaries.
type CurrentWeek struct {
	WeekStart string                `json:"week_start"`
	WeekEnd   string                `json:"week_end"`
	Snapshot  health.WeeklySnapshot `json:"snapshot"`
}

// SaveWeek persists a manually entered or backdated snapshot.
type SaveWeek struct {
	WeekStart string          `json:"week_start" validate:"omitempty,isodate"`
	WeekEnd   string          `json:"week_end" validate:"omitempty,isodate"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

func (sw *SaveWeek) Validate(validate *validator.Validate) error {
	sw.WeekStart = core.CleanString(sw.WeekStart)
	sw.WeekEnd = core.CleanString(sw.WeekEnd)
	if err := validate.Struct(sw); err != nil {
		return err
	}
	if sw.WeekStart == "" && sw.WeekEnd == "" {
		return core.NewValidationError(nil,
			core.FieldError{Field: "week_start", Error: errBoundsRequired},
			core.FieldError{Field: "week_end", Error: errBoundsRequired})
	}
	if sw.WeekStart != "" && sw.WeekEnd != "" && sw.WeekEnd < sw.WeekStart {
		return core.NewValidationError(nil, core.FieldError{Field: "week_end", Error: errBoundsOrder})
	}
	if _, err := parseSnapshot(sw.Snapshot); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "snapshot", Error: errSnapshot})
	}
	return nil
}

// bounds resolves the week boundaries, deriving a missing one from the other.
func (sw SaveWeek) bounds() (string, string) {
	start, end := sw.WeekStart, sw.WeekEnd
	switch {
	case start == "":
		if d, err := core.ParseDate(end); err == nil {
			start = core.FormatDate(d.AddDate(0, 0, -6))
		}
	case end == "":
		if d, err := core.ParseDate(start); err == nil {
			end = core.FormatDate(d.AddDate(0, 0, 6))
		}
	}
	return start, end
}

// parseSnapshot decodes a request snapshot, which must be a JSON object (or absent).
func parseSnapshot(raw json.RawMessage) (health.WeeklySnapshot, error) {
	var probe interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &probe); err != nil {
			return health.WeeklySnapshot{}, errors.Wrap(err, "decoding snapshot")
		}
		if _, ok := probe.(map[string]interface{}); !ok && probe != nil {
			return health.WeeklySnapshot{}, errors.New("snapshot is not an object")
		}
	}
	return health.DecodeSnapshot(raw)
}

type RollupRequest struct {
	Date string `json:"date" validate:"required,isodate"`
}

func (rr *RollupRequest) Validate(validate *validator.Validate) error {
	rr.Date = core.CleanString(rr.Date)
	return validate.Struct(rr)
}

type DeleteRequest struct {
	WeekStart string `json:"week_start" validate:"required,isodate"`
}

func (dr *DeleteRequest) Validate(validate *validator.Validate) error {
	dr.WeekStart = core.CleanString(dr.WeekStart)
	return validate.Struct(dr)
}

// CategoryRequest upserts one category of a week.
type CategoryRequest struct {
	WeekStart    string             `json:"week_start" validate:"required,isodate"`
	ID           string             `json:"id"`
	Name         string             `json:"name" validate:"required,notblank"`
	Status       string             `json:"status"`
	FocusPercent *float64           `json:"focusPercent" validate:"required"`
	Headline     string             `json:"headline"`
	Notes        string             `json:"notes"`
	Metrics      map[string]float64 `json:"metrics"`
}

func (cr *CategoryRequest) Validate(validate *validator.Validate) error {
	cr.WeekStart = core.CleanString(cr.WeekStart)
	cr.ID = core.CleanString(cr.ID)
	cr.Name = core.CleanString(cr.Name)
	cr.Headline = core.CleanString(cr.Headline)
	return validate.Struct(cr)
}

// Category returns the category described by cr. A missing id is derived from the name and an
// unknown status from the percent.
func (cr CategoryRequest) Category() health.CategorySnapshot {
	c := health.CategorySnapshot{
		ID:       cr.ID,
		Name:     cr.Name,
		Headline: cr.Headline,
		Notes:    cr.Notes,
		Metrics:  cr.Metrics,
	}
	if c.ID == "" {
		c.ID = health.Slugify(cr.Name)
	}
	if cr.FocusPercent != nil {
		c.FocusPercent = health.Clamp(*cr.FocusPercent)
	}
	if st := health.ParseStatus(cr.Status); st != "" {
		c.RecordedStatus = st
	} else {
		c.RecordedStatus = c.DerivedStatus()
	}
	return c
}

type RemoveCategoryRequest struct {
	WeekStart string `json:"week_start" validate:"required,isodate"`
	ID        string `json:"id" validate:"required,notblank"`
}

func (rc *RemoveCategoryRequest) Validate(validate *validator.Validate) error {
	rc.WeekStart = core.CleanString(rc.WeekStart)
	rc.ID = core.CleanString(rc.ID)
	return validate.Struct(rc)
}
