// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ELIGIBILITY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetEligibilityQuery asks whether a student may advance on a given date.
type GetEligibilityQuery struct {
	StudentID string

	// AsOf defaults to today in the academy timezone.
	AsOf time.Time
}

// Validate checks the query.
func (q GetEligibilityQuery) Validate() error {
	if q.StudentID == "" {
		return shared.NewDomainError("query", "GetEligibility", shared.ErrValidation, "student_id is required")
	}
	return nil
}

// EligibilityDTO is the verdict together with the numbers behind it.
type EligibilityDTO struct {
	StudentID   string        `json:"student_id"`
	Name        string        `json:"name"`
	Category    belt.Category `json:"category"`
	CurrentRank belt.Rank     `json:"current_rank"`
	Active      bool          `json:"active"`

	AsOf    time.Time    `json:"as_of"`
	Verdict belt.Verdict `json:"verdict"`

	// GradeSince is the date time in grade counts from.
	GradeSince    time.Time `json:"grade_since"`
	MonthsInGrade int       `json:"months_in_grade"`
	Age           int       `json:"age"`

	// MinimumMonths is the requirement at the current color, when there is one.
	MinimumMonths *int `json:"minimum_months,omitempty"`

	Progression []belt.PathStep `json:"progression"`
}

// GetEligibilityHandler handles GetEligibilityQuery.
type GetEligibilityHandler struct {
	students student.Repository
	clock    timeutil.Clock
	loc      *time.Location
}

// NewGetEligibilityHandler creates a new GetEligibilityHandler.
func NewGetEligibilityHandler(students student.Repository, clock timeutil.Clock, loc *time.Location) *GetEligibilityHandler {
	return &GetEligibilityHandler{students: students, clock: clock, loc: loc}
}

// Handle executes the query.
func (h *GetEligibilityHandler) Handle(ctx context.Context, q GetEligibilityQuery) (*EligibilityDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s, err := h.students.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, err
	}

	asOf := resolveAsOf(q.AsOf, h.clock, h.loc)
	return eligibilityOf(s, asOf), nil
}

func eligibilityOf(s *student.Student, asOf time.Time) *EligibilityDTO {
	view := s.EngineView()

	dto := &EligibilityDTO{
		StudentID:     s.ID,
		Name:          s.Name,
		Category:      s.Category,
		CurrentRank:   s.CurrentRank,
		Active:        s.IsActive(),
		AsOf:          asOf,
		Verdict:       belt.Evaluate(view, asOf),
		GradeSince:    view.Anchor(),
		MonthsInGrade: belt.MonthsInGrade(view.Anchor(), asOf),
		Age:           belt.AgeAt(s.DateOfBirth, asOf),
		Progression:   belt.Progression(view, asOf),
	}
	if m, ok := belt.MinimumMonths(s.CurrentRank.Color); ok {
		dto.MinimumMonths = &m
	}
	return dto
}

func resolveAsOf(asOf time.Time, clock timeutil.Clock, loc *time.Location) time.Time {
	if asOf.IsZero() {
		return timeutil.Today(clock, loc)
	}
	y, m, d := asOf.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
