package daily

import (
	"context"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/health"
)

// Note kinds
const (
	KindUpdate = "UPDATE" // live feed
	KindFocus  = "FOCUS"  // weekly strategic highlight
)

var (
	ErrNotFound = core.NewNotFoundError("note not found")

	kindTag  = "notekind"
	kindText = "kind must be one of UPDATE or FOCUS"
)

// ParseKind matches s case-insensitively. Unknown values give "".
func ParseKind(s string) string {
	switch k := strings.ToUpper(strings.TrimSpace(s)); k {
	case KindUpdate, KindFocus:
		return k
	default:
		return ""
	}
}

type Note struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	SystemKey  string    `json:"system_key,omitempty"`
	AuthorID   string    `json:"author_id,omitempty"`
	AuthorName string    `json:"author_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewNote struct {
	Date      string `json:"date" validate:"required,isodate"`
	Kind      string `json:"kind" validate:"required,notekind"`
	Text      string `json:"text" validate:"required,notblank,max=2000"`
	SystemKey string `json:"system_key"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Date = core.CleanString(nn.Date)
	nn.Text = core.CleanString(nn.Text)
	nn.SystemKey = core.CleanString(nn.SystemKey)
	if k := ParseKind(nn.Kind); k != "" {
		nn.Kind = k
	}
	return validate.Struct(nn)
}

// QueryFilter selects notes; empty fields match everything.
type QueryFilter struct {
	Date string `query:"date"`
	From string `query:"from"`
	To   string `query:"to"`
	Kind string `query:"kind"`
}

func (qf *QueryFilter) Clean() {
	qf.Date = core.CleanString(qf.Date)
	qf.From = core.CleanString(qf.From)
	qf.To = core.CleanString(qf.To)
	qf.Kind = ParseKind(qf.Kind)
}

// Author identifies who wrote a note.
type Author struct {
	ID   string
	Name string
}

type (
	Repository interface {
		CreateNote(ctx context.Context, note Note, exec ...core.DBExecutor) (Note, error)
		// QueryNotes returns notes newest first.
		QueryNotes(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Note, error)
		GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (Note, error)
		DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

// RegisterValidators registers the note validators & their translations on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(kindTag, func(fl validator.FieldLevel) bool {
		return ParseKind(fl.Field().String()) != ""
	})
	core.RegisterCustomTranslation(validate, translator, kindTag, kindText)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, nowFunc: time.Now}
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Note, error) {
	filter.Clean()
	notes, err := svc.repo.QueryNotes(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

func (svc *Service) Create(ctx context.Context, nn NewNote, author Author) (Note, error) {
	note := Note{
		Date:       nn.Date,
		Kind:       ParseKind(nn.Kind),
		Text:       nn.Text,
		SystemKey:  nn.SystemKey,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		CreatedAt:  svc.nowFunc().UTC(),
	}
	note, err := svc.repo.CreateNote(ctx, note)
	if err != nil {
		return Note{}, errors.Wrap(err, "creating note")
	}
	return note, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	n, err := svc.repo.DeleteNote(ctx, id)
	if err != nil {
		return errors.Wrap(err, "deleting note")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Focus returns the FOCUS notes of the week starting on weekStart (any date of the week works).
func (svc *Service) Focus(ctx context.Context, weekStart string) ([]Note, error) {
	return svc.forWeek(ctx, weekStart, KindFocus)
}

// Updates returns the UPDATE notes of the week containing date.
func (svc *Service) Updates(ctx context.Context, date string) ([]Note, error) {
	return svc.forWeek(ctx, date, KindUpdate)
}

func (svc *Service) forWeek(ctx context.Context, date, kind string) ([]Note, error) {
	var week health.Week
	if d, err := core.ParseDate(date); err == nil {
		week = health.WeekOf(d)
	} else {
		week = health.WeekOf(svc.nowFunc())
	}
	return svc.List(ctx, QueryFilter{From: week.StartISO(), To: week.EndISO(), Kind: kind})
}
