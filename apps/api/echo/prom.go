package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/edupulse/core/health"
)

// apiMetrics holds the collectors served on /metrics. Each server has its own registry.
type apiMetrics struct {
	registry      *prometheus.Registry
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	overall       prometheus.Gauge
	stable        prometheus.Gauge
	systemPercent *prometheus.GaugeVec
	liveClients   prometheus.Gauge
}

func newAPIMetrics() *apiMetrics {
	m := &apiMetrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edupulse_http_requests_total",
			Help: "Total count of HTTP requests processed by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edupulse_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		overall: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edupulse_overall_percent",
			Help: "Overall digital health score of the current week, as last served.",
		}),
		stable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edupulse_stable_systems",
			Help: "Number of systems in ON TRACK status in the current week.",
		}),
		systemPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edupulse_system_percent",
			Help: "Current week percent by system.",
		}, []string{"system"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edupulse_live_clients",
			Help: "Connected live dashboard clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.duration,
		m.overall,
		m.stable,
		m.systemPercent,
		m.liveClients,
	)
	return m
}

func (m *apiMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records the status & duration of each request by route pattern.
func (m *apiMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}

		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(route, ctx.Request().Method, strconv.Itoa(ctx.Response().Status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return nil
	}
}

func (m *apiMetrics) observeDashboard(d health.Dashboard) {
	m.overall.Set(float64(d.OverallPercent))
	m.stable.Set(float64(d.StableCount))
	for _, t := range d.Tiles {
		key := t.SystemKey
		if key == "" {
			key = t.ID
		}
		m.systemPercent.WithLabelValues(key).Set(t.Percent)
	}
}
