package student

import (
	"context"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores student records.
type Repository interface {
	// Create inserts a new student.
	// Returns shared.ErrStudentAlreadyExists on an ID clash.
	Create(ctx context.Context, student *Student) error

	// GetByID returns shared.ErrStudentNotFound when no student has the ID.
	GetByID(ctx context.Context, id string) (*Student, error)

	// Update writes profile fields. Rank and promotion date are left alone.
	Update(ctx context.Context, student *Student) error

	// Deactivate marks the student inactive (soft delete).
	Deactivate(ctx context.Context, id string) error

	// List returns students matching opts.
	List(ctx context.Context, opts ListOptions) ([]*Student, error)

	// Count returns the number of students matching opts, ignoring paging.
	Count(ctx context.Context, opts ListOptions) (int, error)

	// Exists checks an ID case-insensitively.
	Exists(ctx context.Context, id string) (bool, error)
}

// ListOptions filters and pages student listings.
type ListOptions struct {
	Offset int
	Limit  int

	// Category restricts the listing to one category when set.
	Category belt.Category

	// IncludeInactive includes students who have left.
	IncludeInactive bool
}

// DefaultListOptions returns the first page of active students.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  50,
	}
}

// PromotionApplier commits a confirmed promotion. It is the only writer of a
// student's rank and last promotion date.
type PromotionApplier interface {
	// ApplyPromotion sets the student's rank to rec.To and the last promotion
	// date to rec.Date, and appends rec to the history, in one transaction.
	// The write happens only while the stored last promotion date still
	// equals expectedLast (nil meaning never promoted); otherwise it returns
	// shared.ErrPromotionConflict and changes nothing.
	ApplyPromotion(ctx context.Context, rec *PromotionRecord, expectedLast *time.Time) error
}

// PromotionRepository stores rank history.
type PromotionRepository interface {
	PromotionApplier

	// ListByStudent returns the history newest first.
	ListByStudent(ctx context.Context, studentID string) ([]PromotionRecord, error)
}

// AttendanceRepository stores class attendance.
type AttendanceRepository interface {
	Create(ctx context.Context, rec *AttendanceRecord) error

	// ListByStudent returns records dated in [from, to], newest first.
	ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]AttendanceRecord, error)
}

// PaymentRepository stores monthly fees.
type PaymentRepository interface {
	// Save inserts the entry or replaces the one for the same student and month.
	Save(ctx context.Context, rec *PaymentRecord) error

	// ListByStudent returns entries newest period first.
	ListByStudent(ctx context.Context, studentID string) ([]PaymentRecord, error)
}
