package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/daily"
	"github.com/trezcool/edupulse/core/user"
)

type dailyApi struct {
	svc      *daily.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerDailyAPI(
	g *echo.Group,
	read echo.MiddlewareFunc,
	write []echo.MiddlewareFunc,
	svc *daily.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := dailyApi{svc: svc, usrSvc: usrSvc, validate: validate}

	dg := g.Group("/daily")
	dg.GET("", api.query, read)
	dg.POST("", api.create, write...)
	dg.DELETE("/:id", api.destroy, write...)

	g.GET("/focus", api.focus, read)
}

func (api *dailyApi) query(ctx echo.Context) error {
	var filter daily.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	notes, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing notes")
	}
	return ctx.JSON(http.StatusOK, ItemsResponse{Items: notes})
}

func (api *dailyApi) create(ctx echo.Context) error {
	var data daily.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	note, err := api.svc.Create(ctx.Request().Context(), data, daily.Author{ID: usr.ID, Name: usr.Name})
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, note)
}

func (api *dailyApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *dailyApi) focus(ctx echo.Context) error {
	notes, err := api.svc.Focus(ctx.Request().Context(), core.CleanString(ctx.QueryParam("week_start")))
	if err != nil {
		return errors.Wrap(err, "listing focus notes")
	}
	return ctx.JSON(http.StatusOK, ItemsResponse{Items: notes})
}
