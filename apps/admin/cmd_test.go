package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
	"github.com/trezcool/edupulse/storage/database"
	sqlxrepos "github.com/trezcool/edupulse/storage/database/sqlx"
)

var october15 = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) *commandLine {
	t.Helper()
	conf := core.NewTestConfig()
	db, err := database.OpenMigrated(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	catalog := health.DefaultCatalog()
	weeklySvc := weekly.NewService(
		sqlxrepos.NewWeeklyRepository(db),
		metric.NewService(sqlxrepos.NewMetricRepository(db), catalog),
		health.NewAggregator(catalog, health.SimpleAverage{}),
		nil,
		core.NewDiscardLogger(),
		conf.HistoryLimit,
	)
	weeklySvc.SetClock(func() time.Time { return october15 })

	return &commandLine{
		conf:      conf,
		db:        db,
		usrSvc:    user.NewService(sqlxrepos.NewUserRepository(db)),
		weeklySvc: weeklySvc,
		nowFunc:   func() time.Time { return october15 },
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	pwd        string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(fd int) ([]byte, error) {
				return []byte(tt.pwd), nil
			}

			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotDialect string
	gooseRunFunc = func(db *sql.DB, dialect, command string, args ...string) error {
		gotDialect = dialect
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	defer func() { gooseRunFunc = database.Migrate }()

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}, func(t *testing.T, tt cliTest) {
		assert.Equal(t, database.SQLite, gotDialect)
	})
}

func Test_commandLine_migrateStatus(t *testing.T) {
	cli := setup(t)
	require.NoError(t, cli.run([]string{"admin", "migrate", "status"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "ada"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-username", "ada", "-role", "janitor"}, pwd: "pwd", wantErr: errUnknownRole},
		{name: "executive", args: []string{"adduser", "-username", "ada", "-email", "ada@school.test", "-role", "executive"}, pwd: "first"},
		{name: "promote to staff", args: []string{"adduser", "-username", "ada", "-role", "staff"}, pwd: "second"},
	}, nil)

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "ada@school.test")
	require.NoError(t, err)
	assert.Equal(t, user.StaffRoles, usr.Roles)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("second"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr, err := cli.usrSvc.AddUser(ctx, "awe", "awe@test.cd", "mdr")
	require.NoError(t, err)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}, pwd: "lmao"},
	}, func(t *testing.T, tt cliTest) {
		refreshed, err := cli.usrSvc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword(tt.pwd))
	})
}

func Test_commandLine_rollup(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	err := cli.run([]string{"admin", "rollup", "-date", "13/10/2026"})
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok, "want a validation error, got %v", err)

	v := 88.0
	ms := metric.NewService(sqlxrepos.NewMetricRepository(cli.db), health.DefaultCatalog())
	_, err = ms.Record(ctx, metric.NewMetric{Date: "2026-10-13", SystemKey: "MDM", MetricKey: "coverage_percent", MetricValue: &v})
	require.NoError(t, err)

	runCLITests(t, cli, []cliTest{
		{name: "today", args: []string{"rollup"}},
	}, func(t *testing.T, tt cliTest) {
		cw, err := cli.weeklySvc.Get(ctx, "2026-10-12")
		require.NoError(t, err)
		assert.Equal(t, "2026-10-18", cw.WeekEnd)
		assert.NotEmpty(t, cw.Snapshot.Categories)
	})
}
