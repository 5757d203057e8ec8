package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core/report"
)

type reportApi struct {
	svc      *report.Service
	validate *validator.Validate
}

type SuccessResponse struct {
	Success string `json:"success"`
}

func registerReportAPI(
	g *echo.Group,
	read echo.MiddlewareFunc,
	write []echo.MiddlewareFunc,
	svc *report.Service,
	validate *validator.Validate,
) {
	api := reportApi{svc: svc, validate: validate}

	rg := g.Group("/report/weekly")
	rg.GET("", api.weekly, read)
	rg.POST("/email", api.email, write...)
}

// weekly returns the report as JSON, or as plain text with ?format=text or Accept: text/plain.
func (api *reportApi) weekly(ctx echo.Context) error {
	rep, err := api.svc.Build(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building weekly report")
	}

	wantText := ctx.QueryParam("format") == "text" ||
		strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMETextPlain)
	if !wantText {
		return ctx.JSON(http.StatusOK, rep)
	}

	text, err := api.svc.Text(rep)
	if err != nil {
		return errors.Wrap(err, "rendering weekly report")
	}
	return ctx.String(http.StatusOK, text)
}

func (api *reportApi) email(ctx echo.Context) error {
	var data report.EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if _, err := api.svc.Email(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "emailing weekly report")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The weekly report is on its way."})
}
