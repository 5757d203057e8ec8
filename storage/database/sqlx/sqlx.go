// Package sqlxrepos implements the repositories over sqlx. Queries use "?" placeholders,
// rebound to the driver's bindvar, and ON CONFLICT upserts understood by Postgres and SQLite.
package sqlxrepos

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
)

func newID() string {
	return uuid.NewString()
}

func pickExec(def core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return def
}

// trapNoRows maps the sql "no rows" err to notFound.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
