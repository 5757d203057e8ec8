package report

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/daily"
	"github.com/trezcool/edupulse/core/health"
	"github.com/trezcool/edupulse/core/weekly"
)

// TemplateName is the email template rendering a Report.
const TemplateName = "weekly_report"

var errTemplateMissing = errors.New("weekly report template is not loaded")

type (
	Line struct {
		Name     string        `json:"name"`
		Percent  int           `json:"percent"`
		Status   health.Status `json:"status"`
		Headline string        `json:"headline"`
	}

	Update struct {
		Date   string `json:"date"`
		Text   string `json:"text"`
		Author string `json:"author,omitempty"`
	}

	// Report is the weekly digest sent to executives.
	Report struct {
		WeekStart      string         `json:"week_start"`
		WeekEnd        string         `json:"week_end"`
		WeekLabel      string         `json:"weekLabel"`
		OverallPercent int            `json:"overallPercent"`
		Status         health.Status  `json:"status"`
		Delta          int            `json:"delta"`
		DeltaText      string         `json:"deltaText"`
		DeltaSource    string         `json:"deltaSource"`
		StableCount    int            `json:"stableCount"`
		TotalSystems   int            `json:"totalSystems"`
		Systems        []Line         `json:"systems"`
		Alerts         []string       `json:"alerts"`
		Focus          []string       `json:"focus"`
		Updates        []Update       `json:"updates"`
		Summary        health.Summary `json:"summary"`
		GeneratedAt    time.Time      `json:"generated_at"`
	}

	// EmailRequest lists the recipients of an emailed report.
	EmailRequest struct {
		To []string `json:"to" validate:"required,min=1,dive,email"`
	}
)

type Service struct {
	weekly  *weekly.Service
	daily   *daily.Service
	email   core.EmailService
	appName string
	nowFunc func() time.Time
}

func NewService(weeklySvc *weekly.Service, dailySvc *daily.Service, email core.EmailService, appName string) *Service {
	return &Service{
		weekly:  weeklySvc,
		daily:   dailySvc,
		email:   email,
		appName: appName,
		nowFunc: time.Now,
	}
}

// Build assembles the report of the current week.
func (svc *Service) Build(ctx context.Context) (Report, error) {
	dash, err := svc.weekly.Dashboard(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "building dashboard")
	}
	trends, err := svc.weekly.Trends(ctx, 0)
	if err != nil {
		return Report{}, errors.Wrap(err, "building trends")
	}
	focus, err := svc.daily.Focus(ctx, dash.WeekStart)
	if err != nil {
		return Report{}, errors.Wrap(err, "loading focus notes")
	}
	updates, err := svc.daily.Updates(ctx, dash.WeekStart)
	if err != nil {
		return Report{}, errors.Wrap(err, "loading updates")
	}

	rep := Report{
		WeekStart:      dash.WeekStart,
		WeekEnd:        dash.WeekEnd,
		WeekLabel:      dash.WeekLabel,
		OverallPercent: dash.OverallPercent,
		Status:         dash.Status,
		Delta:          dash.Delta.Value,
		DeltaText:      signed(dash.Delta.Value),
		DeltaSource:    dash.Delta.Source,
		StableCount:    dash.StableCount,
		TotalSystems:   dash.TotalSystems,
		Systems:        make([]Line, 0, len(dash.Tiles)),
		Alerts:         dash.Alerts,
		Focus:          make([]string, 0, len(focus)),
		Updates:        make([]Update, 0, len(updates)),
		Summary:        trends.Summary,
		GeneratedAt:    svc.nowFunc().UTC(),
	}
	if rep.Alerts == nil {
		rep.Alerts = []string{}
	}
	for _, t := range dash.Tiles {
		rep.Systems = append(rep.Systems, Line{
			Name:     t.Name,
			Percent:  health.Round(t.Percent),
			Status:   t.RecordedStatus,
			Headline: t.Headline,
		})
	}
	for _, n := range focus {
		rep.Focus = append(rep.Focus, n.Text)
	}
	for _, n := range updates {
		rep.Updates = append(rep.Updates, Update{Date: n.Date, Text: n.Text, Author: n.AuthorName})
	}
	return rep, nil
}

func signed(v int) string {
	if v > 0 {
		return fmt.Sprintf("+%d", v)
	}
	return fmt.Sprint(v)
}

func (rep Report) Subject() string {
	return fmt.Sprintf("Digital health %s: %d%% %s", rep.WeekLabel, rep.OverallPercent, rep.Status)
}

func (rep Report) message(to []mail.Address) *core.EmailMessage {
	return &core.EmailMessage{
		To:           to,
		Subject:      rep.Subject(),
		TemplateName: TemplateName,
		TemplateData: rep,
	}
}

// Text renders the plain text version of rep.
func (svc *Service) Text(rep Report) (string, error) {
	msg := rep.message(nil)
	if err := msg.Render(svc.appName); err != nil {
		return "", errors.Wrap(err, "rendering weekly report")
	}
	if msg.TextContent == "" {
		return "", errTemplateMissing
	}
	return msg.TextContent, nil
}

// Email builds the current report and sends it to the recipients of req (already validated).
func (svc *Service) Email(ctx context.Context, req EmailRequest) (Report, error) {
	to := make([]mail.Address, 0, len(req.To))
	for i, addr := range req.To {
		a, err := mail.ParseAddress(addr)
		if err != nil {
			return Report{}, core.NewValidationError(err, core.FieldError{Field: fmt.Sprintf("to[%d]", i), Error: "must be a valid email address"})
		}
		to = append(to, *a)
	}

	rep, err := svc.Build(ctx)
	if err != nil {
		return Report{}, err
	}
	svc.email.SendMessages(rep.message(to))
	return rep, nil
}
