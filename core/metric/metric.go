package metric

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
)

var (
	sourceTag  = "metricsource"
	sourceText = "source must be one of Manual, API, Excel or ToddleLog"

	errMetaNotObject = "meta must be a JSON object"
)

type (
	Repository interface {
		// UpsertMetric writes row, overwriting any row with the same (system_key, metric_key, date).
		UpsertMetric(ctx context.Context, row health.MetricRow, exec ...core.DBExecutor) (health.MetricRow, error)
		// LatestMetrics returns the most recent row per (system_key, metric_key).
		LatestMetrics(ctx context.Context, exec ...core.DBExecutor) ([]health.MetricRow, error)
		// QueryMetrics returns the rows dated within [from, to] (YYYY-MM-DD, inclusive).
		QueryMetrics(ctx context.Context, from, to string, exec ...core.DBExecutor) ([]health.MetricRow, error)
		// LastUpdated returns the most recent updated_at per system.
		LastUpdated(ctx context.Context, exec ...core.DBExecutor) ([]health.SystemUpdate, error)
	}

	Service struct {
		repo    Repository
		catalog health.Catalog
		nowFunc func() time.Time
	}
)

// NewMetric is the payload of one daily observation.
type NewMetric struct {
	Date        string          `json:"date" validate:"required,isodate"`
	SystemKey   string          `json:"system_key" validate:"required,notblank"`
	MetricKey   string          `json:"metric_key" validate:"required,notblank"`
	MetricValue *float64        `json:"metric_value" validate:"required"`
	Source      string          `json:"source" validate:"omitempty,metricsource"`
	Meta        json.RawMessage `json:"meta"`
}

func (nm *NewMetric) Validate(validate *validator.Validate) error {
	nm.Date = core.CleanString(nm.Date)
	nm.SystemKey = core.CleanString(nm.SystemKey)
	nm.MetricKey = core.CleanString(nm.MetricKey, true /* lower */)
	nm.Source = core.CleanString(nm.Source)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	if _, err := decodeMeta(nm.Meta); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "meta", Error: errMetaNotObject})
	}
	return nil
}

// RegisterValidators registers the metric validators & their translations on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(sourceTag, func(fl validator.FieldLevel) bool {
		_, ok := health.ParseSource(fl.Field().String())
		return ok
	})
	core.RegisterCustomTranslation(validate, translator, sourceTag, sourceText)
}

func decodeMeta(raw json.RawMessage) (health.Meta, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return health.Meta{}, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return health.Meta{}, errors.Wrap(err, "decoding meta")
	}
	return health.ParseMeta(data), nil
}

func NewService(repo Repository, catalog health.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog, nowFunc: time.Now}
}

// Record stores a validated observation. Known systems are stored under their catalog key.
func (svc *Service) Record(ctx context.Context, nm NewMetric) (health.MetricRow, error) {
	meta, err := decodeMeta(nm.Meta)
	if err != nil {
		return health.MetricRow{}, core.NewValidationError(err, core.FieldError{Field: "meta", Error: errMetaNotObject})
	}
	src, ok := health.ParseSource(nm.Source)
	if !ok {
		src = health.SourceManual
	}
	systemKey := nm.SystemKey
	if sys, ok := svc.catalog.Lookup(systemKey); ok {
		systemKey = sys.Key
	}
	var value float64
	if nm.MetricValue != nil {
		value = *nm.MetricValue
	}

	row := health.MetricRow{
		SystemKey:   systemKey,
		MetricKey:   strings.ToLower(nm.MetricKey),
		MetricValue: value,
		Source:      src,
		Meta:        meta,
		Date:        nm.Date,
		UpdatedAt:   svc.nowFunc().UTC(),
	}
	row, err = svc.repo.UpsertMetric(ctx, row)
	if err != nil {
		return health.MetricRow{}, errors.Wrap(err, "upserting metric")
	}
	return row, nil
}

func (svc *Service) Latest(ctx context.Context) ([]health.MetricRow, error) {
	rows, err := svc.repo.LatestMetrics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying latest metrics")
	}
	if rows == nil {
		rows = []health.MetricRow{}
	}
	return rows, nil
}

func (svc *Service) LastUpdated(ctx context.Context) ([]health.SystemUpdate, error) {
	items, err := svc.repo.LastUpdated(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying last updates")
	}
	if items == nil {
		items = []health.SystemUpdate{}
	}
	return items, nil
}

// ForWeek returns the rows dated within week.
func (svc *Service) ForWeek(ctx context.Context, week health.Week) ([]health.MetricRow, error) {
	rows, err := svc.repo.QueryMetrics(ctx, week.StartISO(), week.EndISO())
	if err != nil {
		return nil, errors.Wrap(err, "querying week metrics")
	}
	return rows, nil
}
