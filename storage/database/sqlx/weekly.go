package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/weekly"
)

const weekColumns = "id, week_start, week_end, snapshot_json, created_at"

// weekRow holds snapshot_json as a string: drivers return TEXT as string, which does not scan
// into json.RawMessage.
type weekRow struct {
	ID           string    `db:"id"`
	WeekStart    string    `db:"week_start"`
	WeekEnd      string    `db:"week_end"`
	SnapshotJSON string    `db:"snapshot_json"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r weekRow) stored() health.StoredWeek {
	return health.StoredWeek{
		ID:           r.ID,
		WeekStart:    r.WeekStart,
		WeekEnd:      r.WeekEnd,
		SnapshotJSON: []byte(r.SnapshotJSON),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type weeklyRepository struct {
	exec core.DBExecutor
}

var _ weekly.Repository = (*weeklyRepository)(nil)

func NewWeeklyRepository(exec core.DBExecutor) weekly.Repository {
	return &weeklyRepository{exec: exec}
}

func (repo weeklyRepository) get(ctx context.Context, exe core.DBExecutor, q string, args ...interface{}) (health.StoredWeek, error) {
	var row weekRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), args...); err != nil {
		return health.StoredWeek{}, trapNoRows(err, weekly.ErrNotFound, "finding week")
	}
	return row.stored(), nil
}

func (repo weeklyRepository) SaveWeek(ctx context.Context, w health.StoredWeek, exec ...core.DBExecutor) (health.StoredWeek, error) {
	exe := pickExec(repo.exec, exec)
	row := weekRow{
		ID:           newID(),
		WeekStart:    w.WeekStart,
		WeekEnd:      w.WeekEnd,
		SnapshotJSON: string(w.SnapshotJSON),
		CreatedAt:    w.CreatedAt.UTC(),
	}
	q := "INSERT INTO weekly_snapshots (" + weekColumns + ") " +
		"VALUES (:id, :week_start, :week_end, :snapshot_json, :created_at) " +
		"ON CONFLICT (week_start) DO UPDATE SET " +
		"week_end = excluded.week_end, snapshot_json = excluded.snapshot_json, created_at = excluded.created_at"
	if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
		return health.StoredWeek{}, errors.Wrap(err, "saving week")
	}
	// the id of an overwritten week is kept
	return repo.get(ctx, exe, "SELECT "+weekColumns+" FROM weekly_snapshots WHERE week_start = ?", w.WeekStart)
}

func (repo weeklyRepository) GetWeek(ctx context.Context, weekStart string, exec ...core.DBExecutor) (health.StoredWeek, error) {
	return repo.get(ctx, pickExec(repo.exec, exec),
		"SELECT "+weekColumns+" FROM weekly_snapshots WHERE week_start = ?", weekStart)
}

func (repo weeklyRepository) LatestWeek(ctx context.Context, onOrBefore string, exec ...core.DBExecutor) (health.StoredWeek, error) {
	return repo.get(ctx, pickExec(repo.exec, exec),
		"SELECT "+weekColumns+" FROM weekly_snapshots WHERE week_start <= ? ORDER BY week_start DESC LIMIT 1", onOrBefore)
}

func (repo weeklyRepository) ListWeeks(ctx context.Context, limit int, exec ...core.DBExecutor) ([]health.StoredWeek, error) {
	exe := pickExec(repo.exec, exec)
	q := "SELECT " + weekColumns + " FROM weekly_snapshots ORDER BY week_start DESC"
	var args []interface{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []weekRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing weeks")
	}
	weeks := make([]health.StoredWeek, 0, len(rows))
	for _, r := range rows {
		weeks = append(weeks, r.stored())
	}
	return weeks, nil
}

func (repo weeklyRepository) DeleteWeek(ctx context.Context, weekStart string, exec ...core.DBExecutor) (int, error) {
	exe := pickExec(repo.exec, exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM weekly_snapshots WHERE week_start = ?"), weekStart)
	if err != nil {
		return 0, errors.Wrap(err, "deleting week")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting week")
}
