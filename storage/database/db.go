package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/edupulse/assets"
	"github.com/trezcool/edupulse/core"
)

// Dialects
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(SQLite, sqlx.QUESTION)
}

func postgresURL(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_time_format=sqlite&_pragma=busy_timeout(5000)", path)
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	if conf.Database.IsSQLite() {
		db, err := sqlx.Open(SQLite, sqliteDSN(conf.Database.Path))
		if err != nil {
			return nil, err
		}
		// every connection to ":memory:" is a new database
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return sqlx.Open(Postgres, postgresURL(dbName, admin, conf))
}

// Open opens the configured database and waits for it to accept connections.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Dialect returns the dialect of the configured database.
func Dialect(conf *core.Config) string {
	if conf.Database.IsSQLite() {
		return SQLite
	}
	return Postgres
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	err := db.Get(&found, query, name)
	if errors.Cause(err) == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		// identifiers & passwords cannot be bound as parameters in DDL
		q := fmt.Sprintf("CREATE USER %q CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %q", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the app user & database on Postgres. SQLite creates its file on open.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.IsSQLite() {
		return nil
	}

	// connect as admin
	adminDB, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = ping(context.Background(), adminDB.DB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(adminDB, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

// Migrate runs a goose command ("up", "down", "status", "version", ...) with the embedded
// migrations of dialect.
func Migrate(db *sql.DB, dialect, command string, args ...string) error {
	goose.SetBaseFS(assets.FS)
	gooseDialect := dialect
	if dialect == SQLite {
		gooseDialect = "sqlite3"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db, assets.MigrationsFor(dialect), args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}

// OpenMigrated opens the configured database and applies all pending migrations.
func OpenMigrated(conf *core.Config) (*sqlx.DB, error) {
	db, err := Open(conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(db.DB, Dialect(conf), "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
