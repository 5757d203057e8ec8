package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
)

type metricRepository struct {
	db *metricTable
}

var _ metric.Repository = (*metricRepository)(nil)

func NewMetricRepository(db *DB) metric.Repository {
	return &metricRepository{db: db.metric}
}

func (repo *metricRepository) UpsertMetric(_ context.Context, row health.MetricRow, _ ...core.DBExecutor) (health.MetricRow, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[metricKey{row.SystemKey, row.MetricKey, row.Date}] = row
	return row, nil
}

func (repo *metricRepository) LatestMetrics(_ context.Context, _ ...core.DBExecutor) ([]health.MetricRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type pair struct{ system, metric string }
	latest := make(map[pair]health.MetricRow)
	for k, row := range repo.db.table {
		p := pair{k.system, k.metric}
		cur, ok := latest[p]
		if !ok || row.Date > cur.Date || (row.Date == cur.Date && row.UpdatedAt.After(cur.UpdatedAt)) {
			latest[p] = row
		}
	}

	rows := make([]health.MetricRow, 0, len(latest))
	for _, row := range latest {
		rows = append(rows, row)
	}
	sortRows(rows)
	return rows, nil
}

func (repo *metricRepository) QueryMetrics(_ context.Context, from, to string, _ ...core.DBExecutor) ([]health.MetricRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]health.MetricRow, 0)
	for _, row := range repo.db.table {
		if row.Date >= from && row.Date <= to {
			rows = append(rows, row)
		}
	}
	sortRows(rows)
	return rows, nil
}

func (repo *metricRepository) LastUpdated(_ context.Context, _ ...core.DBExecutor) ([]health.SystemUpdate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	last := make(map[string]health.SystemUpdate)
	for _, row := range repo.db.table {
		if cur, ok := last[row.SystemKey]; !ok || row.UpdatedAt.After(cur.LastUpdated) {
			last[row.SystemKey] = health.SystemUpdate{SystemKey: row.SystemKey, LastUpdated: row.UpdatedAt}
		}
	}

	items := make([]health.SystemUpdate, 0, len(last))
	for _, item := range last {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SystemKey < items[j].SystemKey })
	return items, nil
}

// sortRows orders rows by date, then system and metric keys.
func sortRows(rows []health.MetricRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SystemKey != b.SystemKey {
			return a.SystemKey < b.SystemKey
		}
		return a.MetricKey < b.MetricKey
	})
}
