package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/daily"
)

const noteColumns = "id, date, kind, text, system_key, author_id, author_name, created_at"

type noteRow struct {
	ID         string      `db:"id"`
	Date       string      `db:"date"`
	Kind       string      `db:"kind"`
	Text       string      `db:"text"`
	SystemKey  null.String `db:"system_key"`
	AuthorID   null.String `db:"author_id"`
	AuthorName null.String `db:"author_name"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toNoteRow(n daily.Note) noteRow {
	return noteRow{
		ID:         n.ID,
		Date:       n.Date,
		Kind:       n.Kind,
		Text:       n.Text,
		SystemKey:  null.NewString(n.SystemKey, n.SystemKey != ""),
		AuthorID:   null.NewString(n.AuthorID, n.AuthorID != ""),
		AuthorName: null.NewString(n.AuthorName, n.AuthorName != ""),
		CreatedAt:  n.CreatedAt.UTC(),
	}
}

func (r noteRow) note() daily.Note {
	return daily.Note{
		ID:         r.ID,
		Date:       r.Date,
		Kind:       r.Kind,
		Text:       r.Text,
		SystemKey:  r.SystemKey.String,
		AuthorID:   r.AuthorID.String,
		AuthorName: r.AuthorName.String,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type dailyRepository struct {
	exec core.DBExecutor
}

var _ daily.Repository = (*dailyRepository)(nil)

func NewDailyRepository(exec core.DBExecutor) daily.Repository {
	return &dailyRepository{exec: exec}
}

func (repo dailyRepository) CreateNote(ctx context.Context, note daily.Note, exec ...core.DBExecutor) (daily.Note, error) {
	note.ID = newID()
	note.CreatedAt = note.CreatedAt.UTC()
	q := "INSERT INTO daily_notes (" + noteColumns + ") " +
		"VALUES (:id, :date, :kind, :text, :system_key, :author_id, :author_name, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, pickExec(repo.exec, exec), q, toNoteRow(note)); err != nil {
		return daily.Note{}, errors.Wrap(err, "inserting note")
	}
	return note, nil
}

func (repo dailyRepository) QueryNotes(ctx context.Context, filter daily.QueryFilter, exec ...core.DBExecutor) ([]daily.Note, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Date != "" {
		where = append(where, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}

	q := "SELECT " + noteColumns + " FROM daily_notes"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date DESC, created_at DESC"

	exe := pickExec(repo.exec, exec)
	var rows []noteRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	notes := make([]daily.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.note())
	}
	return notes, nil
}

func (repo dailyRepository) GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (daily.Note, error) {
	exe := pickExec(repo.exec, exec)
	var row noteRow
	err := sqlx.GetContext(ctx, exe, &row, exe.Rebind("SELECT "+noteColumns+" FROM daily_notes WHERE id = ?"), id)
	if err != nil {
		return daily.Note{}, trapNoRows(err, daily.ErrNotFound, "finding note")
	}
	return row.note(), nil
}

func (repo dailyRepository) DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) (int, error) {
	exe := pickExec(repo.exec, exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM daily_notes WHERE id = ?"), id)
	if err != nil {
		return 0, errors.Wrap(err, "deleting note")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting note")
}
