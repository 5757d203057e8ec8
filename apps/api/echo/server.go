package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/daily"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/report"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
	eventsvc "github.com/trezcool/edupulse/services/events"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc   *user.Service
		MetricSvc *metric.Service
		WeeklySvc *weekly.Service
		DailySvc  *daily.Service
		ReportSvc *report.Service

		// Live receives the snapshot events pushed to /api/live clients. Optional.
		Live *eventsvc.Broadcaster
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		auth     *jwtAuth
		metrics  *apiMetrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts *Options) *Server {
	if opts.Address == "" && opts.Conf != nil {
		opts.Address = opts.Conf.Server.Address()
	}
	if opts.Logger == nil {
		opts.Logger = core.NewDiscardLogger()
	}
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newJWTAuth(opts.Conf),
		metrics:  newAPIMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(s.metrics.handler()))

	g := s.app.Group("/api")
	jwt := s.auth.middleware()
	read := jwt
	write := []echo.MiddlewareFunc{jwt, roleMiddleware(user.StaffRoles, user.AdminRoles)}

	registerUserAPI(g, jwt, s.auth, s.opts.UserSvc, s.opts.Validate)
	registerMetricAPI(g, read, write, s.opts.MetricSvc, s.opts.WeeklySvc, s.opts.Validate)
	registerWeeklyAPI(g, read, write, s.opts.WeeklySvc, s.metrics, s.opts.Validate)
	registerDailyAPI(g, read, write, s.opts.DailySvc, s.opts.UserSvc, s.opts.Validate)
	registerReportAPI(g, read, write, s.opts.ReportSvc, s.opts.Validate)
	registerLiveAPI(g, s.auth.queryMiddleware(), s.opts.WeeklySvc, s.opts.Live, s.metrics, conf.Server.LiveInterval, s.opts.Logger)
}

func (s *Server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the server.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives interrupt & terminate signals, and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the server owner to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
