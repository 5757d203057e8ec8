package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/weekly"
)

const errLimit = "limit must be a positive integer"

type weeklyApi struct {
	svc      *weekly.Service
	metrics  *apiMetrics
	validate *validator.Validate
}

func registerWeeklyAPI(
	g *echo.Group,
	read echo.MiddlewareFunc,
	write []echo.MiddlewareFunc,
	svc *weekly.Service,
	metrics *apiMetrics,
	validate *validator.Validate,
) {
	api := weeklyApi{svc: svc, metrics: metrics, validate: validate}

	wg := g.Group("/weekly")
	wg.GET("", api.current, read)
	wg.POST("", api.save, write...)
	wg.POST("/rollup", api.rollup, write...)
	wg.POST("/delete", api.delete, write...)
	wg.POST("/categories", api.upsertCategory, write...)
	wg.POST("/categories/remove", api.removeCategory, write...)

	hg := g.Group("/history", read)
	hg.GET("", api.history)
	hg.GET("/trends", api.trends)

	g.GET("/dashboard", api.dashboard, read)
}

// current returns the present week, or the week of the week_start query param.
func (api *weeklyApi) current(ctx echo.Context) error {
	var (
		cur weekly.CurrentWeek
		err error
	)
	if start := core.CleanString(ctx.QueryParam("week_start")); start != "" {
		if _, err = core.ParseDate(start); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "week_start", Error: "must be a date formatted as YYYY-MM-DD"})
		}
		cur, err = api.svc.Get(ctx.Request().Context(), start)
	} else {
		cur, err = api.svc.Current(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "finding week")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *weeklyApi) save(ctx echo.Context) error {
	var data weekly.SaveWeek
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveWeek")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cur, err := api.svc.Save(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving week")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *weeklyApi) rollup(ctx echo.Context) error {
	var data weekly.RollupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RollupRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cur, err := api.svc.Rollup(ctx.Request().Context(), data.Date)
	if err != nil {
		return errors.Wrap(err, "rolling up week")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *weeklyApi) delete(ctx echo.Context) error {
	var data weekly.DeleteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), data.WeekStart); err != nil {
		return errors.Wrap(err, "deleting week")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *weeklyApi) upsertCategory(ctx echo.Context) error {
	var data weekly.CategoryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CategoryRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cur, err := api.svc.UpsertCategory(ctx.Request().Context(), data.WeekStart, data.Category())
	if err != nil {
		return errors.Wrap(err, "upserting category")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *weeklyApi) removeCategory(ctx echo.Context) error {
	var data weekly.RemoveCategoryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RemoveCategoryRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cur, err := api.svc.RemoveCategory(ctx.Request().Context(), data.WeekStart, data.ID)
	if err != nil {
		return errors.Wrap(err, "removing category")
	}
	return ctx.JSON(http.StatusOK, cur)
}

// queryLimit reads the optional "limit" query param; 0 means the default.
func queryLimit(ctx echo.Context) (int, error) {
	raw := core.CleanString(ctx.QueryParam("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, core.NewValidationError(err, core.FieldError{Field: "limit", Error: errLimit})
	}
	return n, nil
}

func (api *weeklyApi) history(ctx echo.Context) error {
	limit, err := queryLimit(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.History(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "listing history")
	}
	return ctx.JSON(http.StatusOK, ItemsResponse{Items: rows})
}

func (api *weeklyApi) trends(ctx echo.Context) error {
	limit, err := queryLimit(ctx)
	if err != nil {
		return err
	}
	h, err := api.svc.Trends(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "aggregating history")
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *weeklyApi) dashboard(ctx echo.Context) error {
	d, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	api.metrics.observeDashboard(d)
	return ctx.JSON(http.StatusOK, d)
}
