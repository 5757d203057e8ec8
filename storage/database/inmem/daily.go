package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/daily"
)

type dailyRepository struct {
	db *dailyTable
}

var _ daily.Repository = (*dailyRepository)(nil)

func NewDailyRepository(db *DB) daily.Repository {
	return &dailyRepository{db: db.daily}
}

func (repo *dailyRepository) CreateNote(_ context.Context, note daily.Note, _ ...core.DBExecutor) (daily.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	note.ID = newID()
	repo.db.table[note.ID] = note
	return note, nil
}

func (repo *dailyRepository) QueryNotes(_ context.Context, filter daily.QueryFilter, _ ...core.DBExecutor) ([]daily.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notes := make([]daily.Note, 0)
	for _, n := range repo.db.table {
		switch {
		case filter.Date != "" && n.Date != filter.Date,
			filter.From != "" && n.Date < filter.From,
			filter.To != "" && n.Date > filter.To,
			filter.Kind != "" && n.Kind != filter.Kind:
			continue
		}
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Date != notes[j].Date {
			return notes[i].Date > notes[j].Date
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (repo *dailyRepository) GetNote(_ context.Context, id string, _ ...core.DBExecutor) (daily.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return n, nil
	}
	return daily.Note{}, daily.ErrNotFound
}

func (repo *dailyRepository) DeleteNote(_ context.Context, id string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return 0, nil
	}
	delete(repo.db.table, id)
	return 1, nil
}
