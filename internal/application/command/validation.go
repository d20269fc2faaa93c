// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct's `validate` tags and reports every failed
// field in one ErrValidation.
func validateStruct(op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return shared.NewDomainError("command", op, shared.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func parseRank(op, color string, stripes int) (belt.Rank, error) {
	c, err := belt.ParseColor(color)
	if err != nil {
		return belt.Rank{}, shared.WrapError("command", op, shared.ErrInvalidInput, "unknown belt", err)
	}
	return belt.Rank{Color: c, Stripes: stripes}, nil
}

// orToday returns the calendar date of t, or today at loc when t is zero.
func orToday(t time.Time, clock timeutil.Clock, loc *time.Location) time.Time {
	if t.IsZero() {
		return timeutil.Today(clock, loc)
	}
	return shared.Date(t)
}

// notAfterToday rejects dates later than today in the academy timezone.
func notAfterToday(op, field string, date time.Time, clock timeutil.Clock, loc *time.Location) error {
	if shared.Date(date).After(timeutil.Today(clock, loc)) {
		return shared.NewDomainError("command", op, shared.ErrValidation, field+" cannot be in the future")
	}
	return nil
}

// withCorrelation tags event with the request's correlation ID when set.
func withCorrelation(base shared.BaseEvent, correlationID string) shared.BaseEvent {
	if correlationID == "" {
		return base
	}
	return base.WithCorrelationID(correlationID)
}
