package main

import (
	"log"
	"os"
	"time"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
	logsvc "github.com/trezcool/edupulse/services/logger"
	"github.com/trezcool/edupulse/storage/database"
	sqlxrepos "github.com/trezcool/edupulse/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	catalog, err := health.LoadCatalog(conf.SystemsFile)
	errAndDie(err)
	policy, err := health.NewOverallPolicy(conf.OverallPolicy)
	errAndDie(err)
	metricSvc := metric.NewService(sqlxrepos.NewMetricRepository(db), catalog)

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     db,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db)),
		weeklySvc: weekly.NewService(
			sqlxrepos.NewWeeklyRepository(db),
			metricSvc,
			health.NewAggregator(catalog, policy),
			nil,
			logger,
			conf.HistoryLimit,
		),
		nowFunc: time.Now,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
