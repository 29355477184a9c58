package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nidhogg/lovebook/internal/content"
)

// instantLayouts are the accepted date formats, most specific first.
// Layouts without a zone are read in the configured location.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

func parseInstant(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
}

// parseOptionalInstant returns nil for an empty string.
func parseOptionalInstant(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseInstant(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type milestoneRequest struct {
	Title       string `json:"title" validate:"max=200"`
	Date        string `json:"date" validate:"omitempty,instant"`
	Description string `json:"description" validate:"max=5000"`
}

type notificationRequest struct {
	Message   string `json:"message" validate:"max=1000"`
	EventDate string `json:"eventDate" validate:"omitempty,instant"`
}

type memoryRequest struct {
	Content string `json:"content" validate:"max=10000"`
	Date    string `json:"date" validate:"omitempty,instant"`
}

type albumRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("instant", func(fl validator.FieldLevel) bool {
		_, err := parseInstant(fl.Field().String(), time.UTC)
		return err == nil
	})
	return v
}

// validateStruct runs tag validation and reports failures as
// content.ErrValidation with readable field messages.
func (h *Handler) validateStruct(s any) error {
	err := h.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", content.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", content.ErrValidation, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "instant":
		return fmt.Sprintf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
