package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

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
	inmemdb "github.com/trezcool/edupulse/storage/database/inmem"
)

var (
	october15 = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testApp struct {
	srv       *echoapi.Server
	conf      *core.Config
	usrRepo   user.Repository
	weeklySvc *weekly.Service
	dailySvc  *daily.Service
	metricSvc *metric.Service
	mailSvc   core.EmailService
	live      *eventsvc.Broadcaster
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	logger := core.NewDiscardLogger()
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, true, logger)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.RegisterValidators(validate, translator)
	metric.RegisterValidators(validate, translator)
	daily.RegisterValidators(validate, translator)

	db := inmemdb.Open()
	catalog := health.DefaultCatalog()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	metricSvc := metric.NewService(inmemdb.NewMetricRepository(db), catalog)
	live := eventsvc.NewBroadcaster()
	weeklySvc := weekly.NewService(
		inmemdb.NewWeeklyRepository(db),
		metricSvc,
		health.NewAggregator(catalog, health.SimpleAverage{}),
		live,
		logger,
		conf.HistoryLimit,
	)
	weeklySvc.SetClock(func() time.Time { return october15 })
	dailySvc := daily.NewService(inmemdb.NewDailyRepository(db))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	srv := echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		MetricSvc:      metricSvc,
		WeeklySvc:      weeklySvc,
		DailySvc:       dailySvc,
		ReportSvc:      report.NewService(weeklySvc, dailySvc, mailSvc, conf.AppName),
		Live:           live,
	})

	return &testApp{
		srv:       srv,
		conf:      conf,
		usrRepo:   usrRepo,
		weeklySvc: weeklySvc,
		dailySvc:  dailySvc,
		metricSvc: metricSvc,
		mailSvc:   mailSvc,
		live:      live,
	}
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.srv.ServeHTTP(rec, req)
}

func createUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(conf, usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}
