package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/metric"
	"github.com/trezcool/edupulse/core/weekly"
)

// ItemsResponse wraps list payloads.
type ItemsResponse struct {
	Items interface{} `json:"items"`
}

type metricApi struct {
	svc      *metric.Service
	catalog  health.Catalog
	validate *validator.Validate
}

func registerMetricAPI(
	g *echo.Group,
	read echo.MiddlewareFunc,
	write []echo.MiddlewareFunc,
	svc *metric.Service,
	weeklySvc *weekly.Service,
	validate *validator.Validate,
) {
	api := metricApi{svc: svc, catalog: weeklySvc.Aggregator().Catalog(), validate: validate}

	mg := g.Group("/metrics")
	mg.GET("/latest", api.latest, read)
	mg.POST("", api.record, write...)

	sg := g.Group("/systems", read)
	sg.GET("", api.systems)
	sg.GET("/last-updated", api.lastUpdated)
}

func (api *metricApi) latest(ctx echo.Context) error {
	rows, err := api.svc.Latest(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying latest metrics")
	}
	return ctx.JSON(http.StatusOK, ItemsResponse{Items: rows})
}

func (api *metricApi) record(ctx echo.Context) error {
	var data metric.NewMetric
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMetric")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	row, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording metric")
	}
	return ctx.JSON(http.StatusCreated, row)
}

func (api *metricApi) systems(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ItemsResponse{Items: api.catalog.Systems})
}

func (api *metricApi) lastUpdated(ctx echo.Context) error {
	items, err := api.svc.LastUpdated(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying last updates")
	}
	return ctx.JSON(http.StatusOK, ItemsResponse{Items: items})
}
