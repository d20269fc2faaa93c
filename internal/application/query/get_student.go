package query

import (
	"context"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentQuery loads a student's card.
type GetStudentQuery struct {
	StudentID string

	// AttendanceDays is the look-back window of the attendance summary
	// (default 30, max 365).
	AttendanceDays int
}

// Validate checks the query and applies defaults.
func (q *GetStudentQuery) Validate() error {
	if q.StudentID == "" {
		return shared.NewDomainError("query", "GetStudent", shared.ErrValidation, "student_id is required")
	}
	if q.AttendanceDays < 0 {
		return shared.NewDomainError("query", "GetStudent", shared.ErrValidation, "attendance_days cannot be negative")
	}
	if q.AttendanceDays == 0 {
		q.AttendanceDays = 30
	}
	if q.AttendanceDays > 365 {
		q.AttendanceDays = 365
	}
	return nil
}

// StudentDTO is the student card.
type StudentDTO struct {
	Student     StudentView               `json:"student"`
	Eligibility *EligibilityDTO           `json:"eligibility"`
	Promotions  []student.PromotionRecord `json:"promotions"`

	Attendance       student.AttendanceSummary `json:"attendance"`
	AttendanceFrom   time.Time                 `json:"attendance_from"`
	RecentAttendance []student.AttendanceRecord `json:"recent_attendance"`

	Payments []student.PaymentRecord `json:"payments"`
}

// GetStudentHandler handles GetStudentQuery.
type GetStudentHandler struct {
	students   student.Repository
	promotions student.PromotionRepository
	attendance student.AttendanceRepository
	payments   student.PaymentRepository
	clock      timeutil.Clock
	loc        *time.Location
}

// NewGetStudentHandler creates a new GetStudentHandler.
func NewGetStudentHandler(
	students student.Repository,
	promotions student.PromotionRepository,
	attendance student.AttendanceRepository,
	payments student.PaymentRepository,
	clock timeutil.Clock,
	loc *time.Location,
) *GetStudentHandler {
	return &GetStudentHandler{
		students:   students,
		promotions: promotions,
		attendance: attendance,
		payments:   payments,
		clock:      clock,
		loc:        loc,
	}
}

// Handle executes the query.
func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (*StudentDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s, err := h.students.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, err
	}

	today := timeutil.Today(h.clock, h.loc)
	from := today.AddDate(0, 0, -q.AttendanceDays)

	promotions, err := h.promotions.ListByStudent(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	attendance, err := h.attendance.ListByStudent(ctx, s.ID, from, today)
	if err != nil {
		return nil, err
	}
	payments, err := h.payments.ListByStudent(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	return &StudentDTO{
		Student:          NewStudentView(s),
		Eligibility:      eligibilityOf(s, today),
		Promotions:       nonNil(promotions),
		Attendance:       student.Summarize(attendance),
		AttendanceFrom:   from,
		RecentAttendance: nonNil(attendance),
		Payments:         nonNil(payments),
	}, nil
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
