package student

import (
	"strings"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status tells whether a student still trains at the academy.
type Status string

const (
	// StatusActive - enrolled and training.
	StatusActive Status = "active"
	// StatusInactive - left the academy; the record is kept for history.
	StatusInactive Status = "inactive"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is an enrolled student. CurrentRank and LastPromotionDate change
// only through a confirmed promotion; Update never writes them.
type Student struct {
	ID          string
	Name        string
	DateOfBirth time.Time
	Category    belt.Category
	CurrentRank belt.Rank

	// JoinDate anchors time in grade until the first promotion.
	JoinDate time.Time

	// LastPromotionDate is nil until the student is promoted here.
	LastPromotionDate *time.Time

	Email string
	Phone string
	Notes string

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidName - empty or oversized name.
	ErrInvalidName = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "invalid name: must be 1-120 chars")

	// ErrInvalidDateOfBirth - missing birth date or one after the join date.
	ErrInvalidDateOfBirth = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "invalid date of birth: must be set and not after the join date")

	// ErrInvalidJoinDate - missing join date.
	ErrInvalidJoinDate = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "invalid join date")

	// ErrInvalidLastPromotionDate - last promotion before the join date.
	ErrInvalidLastPromotionDate = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "invalid last promotion date: must not be before the join date")

	// ErrInvalidStripes - negative stripe count.
	ErrInvalidStripes = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "invalid stripes: must be non-negative")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams holds the data collected at enrollment.
type NewStudentParams struct {
	ID          string
	Name        string
	DateOfBirth time.Time
	Category    belt.Category
	Rank        belt.Rank
	JoinDate    time.Time

	// LastPromotionDate is set for students graded here before their record
	// was entered. It cannot precede JoinDate.
	LastPromotionDate *time.Time

	Email string
	Phone string
	Notes string
}

// NewStudent validates params and builds an active student.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, shared.ErrInvalidStudentID
	}

	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 120 {
		return nil, ErrInvalidName
	}

	if !params.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}
	if !belt.OnPath(params.Category, params.Rank.Color) {
		return nil, shared.ErrInvalidBelt
	}
	if params.Rank.Stripes < 0 {
		return nil, ErrInvalidStripes
	}

	if params.JoinDate.IsZero() {
		return nil, ErrInvalidJoinDate
	}
	if params.DateOfBirth.IsZero() || params.DateOfBirth.After(params.JoinDate) {
		return nil, ErrInvalidDateOfBirth
	}

	var last *time.Time
	if params.LastPromotionDate != nil {
		d := shared.Date(*params.LastPromotionDate)
		if d.Before(shared.Date(params.JoinDate)) {
			return nil, ErrInvalidLastPromotionDate
		}
		last = &d
	}

	now := time.Now().UTC()

	return &Student{
		ID:                params.ID,
		Name:              name,
		DateOfBirth:       shared.Date(params.DateOfBirth),
		Category:          params.Category,
		CurrentRank:       params.Rank,
		JoinDate:          shared.Date(params.JoinDate),
		LastPromotionDate: last,
		Email:             strings.TrimSpace(params.Email),
		Phone:             strings.TrimSpace(params.Phone),
		Notes:             params.Notes,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIOUR
// ══════════════════════════════════════════════════════════════════════════════

// EngineView returns the snapshot the eligibility engine evaluates.
func (s *Student) EngineView() belt.Student {
	var last *time.Time
	if s.LastPromotionDate != nil {
		d := *s.LastPromotionDate
		last = &d
	}
	return belt.Student{
		DateOfBirth:       s.DateOfBirth,
		Category:          s.Category,
		CurrentRank:       s.CurrentRank,
		JoinDate:          s.JoinDate,
		LastPromotionDate: last,
	}
}

// Eligibility evaluates the student as of asOf.
func (s *Student) Eligibility(asOf time.Time) belt.Verdict {
	return belt.Evaluate(s.EngineView(), asOf)
}

// MonthsInGrade counts months at the current rank as of asOf.
func (s *Student) MonthsInGrade(asOf time.Time) int {
	return belt.MonthsInGrade(s.EngineView().Anchor(), asOf)
}

// Age returns the student's age in years as of asOf.
func (s *Student) Age(asOf time.Time) int {
	return belt.AgeAt(s.DateOfBirth, asOf)
}

// IsActive reports whether the student still trains.
func (s *Student) IsActive() bool {
	return s.Status == StatusActive
}

// Deactivate marks the student as having left.
func (s *Student) Deactivate() error {
	if !s.IsActive() {
		return shared.ErrStudentNotActive
	}
	s.Status = StatusInactive
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Promote sets the rank and promotion date together. It is the in-memory
// counterpart of PromotionApplier.ApplyPromotion.
func (s *Student) Promote(rank belt.Rank, date time.Time) {
	d := shared.Date(date)
	s.CurrentRank = rank
	s.LastPromotionDate = &d
	s.UpdatedAt = time.Now().UTC()
}

// SameLastPromotion reports whether the stored promotion date equals expected.
// Both nil counts as equal.
func SameLastPromotion(stored, expected *time.Time) bool {
	if stored == nil || expected == nil {
		return stored == nil && expected == nil
	}
	return shared.Date(*stored).Equal(shared.Date(*expected))
}
