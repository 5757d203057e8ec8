package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/weekly"
)

type weeklyRepository struct {
	db *weeklyTable
}

var _ weekly.Repository = (*weeklyRepository)(nil)

func NewWeeklyRepository(db *DB) weekly.Repository {
	return &weeklyRepository{db: db.weekly}
}

func (repo *weeklyRepository) SaveWeek(_ context.Context, w health.StoredWeek, _ ...core.DBExecutor) (health.StoredWeek, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cur, ok := repo.db.table[w.WeekStart]; ok {
		w.ID = cur.ID
	} else {
		w.ID = newID()
	}
	w.SnapshotJSON = append([]byte(nil), w.SnapshotJSON...)
	repo.db.table[w.WeekStart] = w
	return w, nil
}

func (repo *weeklyRepository) GetWeek(_ context.Context, weekStart string, _ ...core.DBExecutor) (health.StoredWeek, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if w, ok := repo.db.table[weekStart]; ok {
		return w, nil
	}
	return health.StoredWeek{}, weekly.ErrNotFound
}

func (repo *weeklyRepository) LatestWeek(_ context.Context, onOrBefore string, _ ...core.DBExecutor) (health.StoredWeek, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var (
		latest health.StoredWeek
		found  bool
	)
	for start, w := range repo.db.table {
		if start <= onOrBefore && (!found || start > latest.WeekStart) {
			latest, found = w, true
		}
	}
	if !found {
		return health.StoredWeek{}, weekly.ErrNotFound
	}
	return latest, nil
}

func (repo *weeklyRepository) ListWeeks(_ context.Context, limit int, _ ...core.DBExecutor) ([]health.StoredWeek, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	weeks := make([]health.StoredWeek, 0, len(repo.db.table))
	for _, w := range repo.db.table {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekStart > weeks[j].WeekStart })
	if limit > 0 && len(weeks) > limit {
		weeks = weeks[:limit]
	}
	return weeks, nil
}

func (repo *weeklyRepository) DeleteWeek(_ context.Context, weekStart string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[weekStart]; !ok {
		return 0, nil
	}
	delete(repo.db.table, weekStart)
	return 1, nil
}
