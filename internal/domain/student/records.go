package student

import (
	"strings"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRecord marks a student present or absent at one class.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"`
	Attended  bool      `json:"attended"`
	ClassName string    `json:"class_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAttendanceRecord validates and builds an attendance record.
func NewAttendanceRecord(id, studentID string, date time.Time, attended bool, className string) (*AttendanceRecord, error) {
	if studentID == "" {
		return nil, shared.ErrInvalidStudentID
	}
	if date.IsZero() {
		return nil, shared.ErrInvalidAttendanceDate
	}
	return &AttendanceRecord{
		ID:        id,
		StudentID: studentID,
		Date:      shared.Date(date),
		Attended:  attended,
		ClassName: strings.TrimSpace(className),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// AttendanceSummary counts classes over a period.
type AttendanceSummary struct {
	Attended int `json:"attended"`
	Missed   int `json:"missed"`
}

// Summarize tallies records.
func Summarize(records []AttendanceRecord) AttendanceSummary {
	var s AttendanceSummary
	for _, r := range records {
		if r.Attended {
			s.Attended++
		} else {
			s.Missed++
		}
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENTS
// ══════════════════════════════════════════════════════════════════════════════

// PaymentStatus is the state of a monthly fee.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentOverdue PaymentStatus = "overdue"
)

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPaid, PaymentPending, PaymentOverdue:
		return true
	default:
		return false
	}
}

// ParsePaymentStatus accepts the canonical names and the Portuguese labels
// found on older ledgers.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "pago":
		return PaymentPaid, nil
	case "pending", "pendente":
		return PaymentPending, nil
	case "overdue", "atrasado":
		return PaymentOverdue, nil
	default:
		return "", shared.ErrInvalidPaymentStatus
	}
}

// PaymentRecord is the fee entry for one student and one month. There is at
// most one per student per month.
type PaymentRecord struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	Month       int           `json:"month"`
	Year        int           `json:"year"`
	Amount      shared.Cents  `json:"amount_cents"`
	Status      PaymentStatus `json:"status"`
	PaymentDate *time.Time    `json:"payment_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewPaymentRecordParams holds a fee entry as entered by staff.
type NewPaymentRecordParams struct {
	ID          string
	StudentID   string
	Month       int
	Year        int
	Amount      shared.Cents
	Status      PaymentStatus
	PaymentDate *time.Time
}

// NewPaymentRecord validates params. A paid entry without a payment date is
// dated today.
func NewPaymentRecord(p NewPaymentRecordParams) (*PaymentRecord, error) {
	if p.StudentID == "" {
		return nil, shared.ErrInvalidStudentID
	}
	if p.Month < 1 || p.Month > 12 || p.Year < 1900 {
		return nil, shared.ErrInvalidPaymentPeriod
	}
	if !p.Amount.IsValid() {
		return nil, shared.ErrInvalidPaymentAmount
	}
	if !p.Status.IsValid() {
		return nil, shared.ErrInvalidPaymentStatus
	}

	var paidOn *time.Time
	switch {
	case p.PaymentDate != nil:
		d := shared.Date(*p.PaymentDate)
		paidOn = &d
	case p.Status == PaymentPaid:
		d := shared.Date(time.Now())
		paidOn = &d
	}

	return &PaymentRecord{
		ID:          p.ID,
		StudentID:   p.StudentID,
		Month:       p.Month,
		Year:        p.Year,
		Amount:      p.Amount,
		Status:      p.Status,
		PaymentDate: paidOn,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROMOTIONS
// ══════════════════════════════════════════════════════════════════════════════

// PromotionRecord is one entry of a student's rank history.
type PromotionRecord struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Date        time.Time `json:"date"`
	From        belt.Rank `json:"from"`
	To          belt.Rank `json:"to"`
	Notes       string    `json:"notes,omitempty"`
	ConfirmedBy string    `json:"confirmed_by"`
	CreatedAt   time.Time `json:"created_at"`
}
