package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/edupulse/core/daily"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/user"
)

type (
	DB struct {
		user   *userTable
		metric *metricTable
		weekly *weeklyTable
		daily  *dailyTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	metricTable struct {
		mutex sync.RWMutex
		table map[metricKey]health.MetricRow
	}

	metricKey struct {
		system, metric, date string
	}

	weeklyTable struct {
		mutex sync.RWMutex
		table map[string]health.StoredWeek // by week_start
	}

	dailyTable struct {
		mutex sync.RWMutex
		table map[string]daily.Note
	}
)

// Open returns an empty in-memory database. Used in tests and for demos without a real DB.
func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		metric: &metricTable{table: make(map[metricKey]health.MetricRow)},
		weekly: &weeklyTable{table: make(map[string]health.StoredWeek)},
		daily:  &dailyTable{table: make(map[string]daily.Note)},
	}
}

func newID() string {
	return uuid.NewString()
}
