package dig_container

import (
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/edupulse/apps/api/echo"
	"github.com/trezcool/edupulse/assets"
	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/daily"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/report"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
	emailsvc "github.com/trezcool/edupulse/services/email"
	eventsvc "github.com/trezcool/edupulse/services/events"
	logsvc "github.com/trezcool/edupulse/services/logger"
	"github.com/trezcool/edupulse/storage/database"
	sqlxrepos "github.com/trezcool/edupulse/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type NewConfigFunc func() *core.Config

func newLogger(conf *core.Config) core.Logger {
	if conf.TestMode {
		return core.NewDiscardLogger()
	}
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	if conf.TestMode {
		return core.NewDiscardLogger()
	}
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}
	db, err := database.OpenMigrated(conf)
	if err != nil {
		return nil, nil, err
	}
	loggerParam.Logger.Info("database ready: " + database.Dialect(conf))
	return db, db, nil
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.RegisterValidators(validate, translator)
	metric.RegisterValidators(validate, translator)
	daily.RegisterValidators(validate, translator)
	return validate
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf.TestMode, logger)
	return emailsvc.NewService(conf, logger)
}

func newCatalog(conf *core.Config) (health.Catalog, error) {
	return health.LoadCatalog(conf.SystemsFile)
}

func newAggregator(conf *core.Config, catalog health.Catalog) (*health.Aggregator, error) {
	policy, err := health.NewOverallPolicy(conf.OverallPolicy)
	if err != nil {
		return nil, err
	}
	return health.NewAggregator(catalog, policy), nil
}

// newEventPublisher fans snapshot events out to the broker and to the live dashboard clients.
func newEventPublisher(pub eventsvc.Publisher, live *eventsvc.Broadcaster) weekly.EventPublisher {
	return eventsvc.Fanout{pub, live}
}

type weeklyParams struct {
	dig.In

	Conf    *core.Config
	Logger  core.Logger
	Repo    weekly.Repository
	Metrics *metric.Service
	Agg     *health.Aggregator
	Events  weekly.EventPublisher
}

func newWeeklyService(p weeklyParams) *weekly.Service {
	return weekly.NewService(p.Repo, p.Metrics, p.Agg, p.Events, p.Logger, p.Conf.HistoryLimit)
}

func newReportService(conf *core.Config, weeklySvc *weekly.Service, dailySvc *daily.Service, email core.EmailService) *report.Service {
	return report.NewService(weeklySvc, dailySvc, email, conf.AppName)
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    *user.Service
	MetricSvc  *metric.Service
	WeeklySvc  *weekly.Service
	DailySvc   *daily.Service
	ReportSvc  *report.Service
	Live       *eventsvc.Broadcaster
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: p.Conf.TestMode,
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		MetricSvc:      p.MetricSvc,
		WeeklySvc:      p.WeeklySvc,
		DailySvc:       p.DailySvc,
		ReportSvc:      p.ReportSvc,
		Live:           p.Live,
	})
}

// New returns a new dependency injection dig.Container
func New(newConf NewConfigFunc) *dig.Container {
	c := dig.New()

	must(c.Provide(newConf))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newEmailService))

	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewMetricRepository))
	must(c.Provide(sqlxrepos.NewWeeklyRepository))
	must(c.Provide(sqlxrepos.NewDailyRepository))

	must(c.Provide(newCatalog))
	must(c.Provide(newAggregator))
	must(c.Provide(eventsvc.NewPublisher))
	must(c.Provide(eventsvc.NewBroadcaster))
	must(c.Provide(newEventPublisher))

	must(c.Provide(user.NewService))
	must(c.Provide(metric.NewService))
	must(c.Provide(newWeeklyService))
	must(c.Provide(daily.NewService))
	must(c.Provide(newReportService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
