package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
)

const metricColumns = "system_key, metric_key, metric_value, source, meta, date, updated_at"

type metricRow struct {
	SystemKey   string      `db:"system_key"`
	MetricKey   string      `db:"metric_key"`
	MetricValue float64     `db:"metric_value"`
	Source      string      `db:"source"`
	Meta        null.String `db:"meta"`
	Date        string      `db:"date"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toMetricRow(row health.MetricRow) (metricRow, error) {
	r := metricRow{
		SystemKey:   row.SystemKey,
		MetricKey:   row.MetricKey,
		MetricValue: row.MetricValue,
		Source:      string(row.Source),
		Date:        row.Date,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if !row.Meta.IsZero() {
		b, err := json.Marshal(row.Meta)
		if err != nil {
			return metricRow{}, errors.Wrap(err, "encoding meta")
		}
		r.Meta = null.StringFrom(string(b))
	}
	return r, nil
}

func (r metricRow) health() health.MetricRow {
	row := health.MetricRow{
		SystemKey:   r.SystemKey,
		MetricKey:   r.MetricKey,
		MetricValue: r.MetricValue,
		Source:      health.Source(r.Source),
		Date:        r.Date,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.Meta.Valid {
		// undecodable meta is dropped, the value still counts
		_ = json.Unmarshal([]byte(r.Meta.String), &row.Meta)
	}
	return row
}

type metricRepository struct {
	exec core.DBExecutor
}

var _ metric.Repository = (*metricRepository)(nil)

func NewMetricRepository(exec core.DBExecutor) metric.Repository {
	return &metricRepository{exec: exec}
}

func (repo metricRepository) selectRows(ctx context.Context, exe core.DBExecutor, q string, args ...interface{}) ([]health.MetricRow, error) {
	var rows []metricRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, err
	}
	out := make([]health.MetricRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.health())
	}
	return out, nil
}

func (repo metricRepository) UpsertMetric(ctx context.Context, row health.MetricRow, exec ...core.DBExecutor) (health.MetricRow, error) {
	r, err := toMetricRow(row)
	if err != nil {
		return health.MetricRow{}, err
	}
	q := "INSERT INTO daily_metrics (" + metricColumns + ") " +
		"VALUES (:system_key, :metric_key, :metric_value, :source, :meta, :date, :updated_at) " +
		"ON CONFLICT (system_key, metric_key, date) DO UPDATE SET " +
		"metric_value = excluded.metric_value, source = excluded.source, meta = excluded.meta, updated_at = excluded.updated_at"
	if _, err := sqlx.NamedExecContext(ctx, pickExec(repo.exec, exec), q, r); err != nil {
		return health.MetricRow{}, errors.Wrap(err, "upserting metric")
	}
	return r.health(), nil
}

func (repo metricRepository) LatestMetrics(ctx context.Context, exec ...core.DBExecutor) ([]health.MetricRow, error) {
	q := "SELECT " + metricColumns + " FROM daily_metrics m " +
		"WHERE m.date = (SELECT MAX(d.date) FROM daily_metrics d WHERE d.system_key = m.system_key AND d.metric_key = m.metric_key) " +
		"ORDER BY m.system_key, m.metric_key"
	rows, err := repo.selectRows(ctx, pickExec(repo.exec, exec), q)
	return rows, errors.Wrap(err, "querying latest metrics")
}

func (repo metricRepository) QueryMetrics(ctx context.Context, from, to string, exec ...core.DBExecutor) ([]health.MetricRow, error) {
	q := "SELECT " + metricColumns + " FROM daily_metrics WHERE date >= ? AND date <= ? ORDER BY date, system_key, metric_key"
	rows, err := repo.selectRows(ctx, pickExec(repo.exec, exec), q, from, to)
	return rows, errors.Wrap(err, "querying metrics")
}

func (repo metricRepository) LastUpdated(ctx context.Context, exec ...core.DBExecutor) ([]health.SystemUpdate, error) {
	// MAX() loses the column type on SQLite, so the row holding it is selected instead
	q := "SELECT m.system_key, m.updated_at AS last_updated FROM daily_metrics m " +
		"WHERE m.updated_at = (SELECT MAX(d.updated_at) FROM daily_metrics d WHERE d.system_key = m.system_key) " +
		"ORDER BY m.system_key"
	exe := pickExec(repo.exec, exec)
	var rows []health.SystemUpdate
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q)); err != nil {
		return nil, errors.Wrap(err, "querying last updates")
	}

	items := make([]health.SystemUpdate, 0, len(rows))
	for _, r := range rows {
		if n := len(items); n > 0 && items[n-1].SystemKey == r.SystemKey {
			continue
		}
		r.LastUpdated = r.LastUpdated.UTC()
		items = append(items, r)
	}
	return items, nil
}
