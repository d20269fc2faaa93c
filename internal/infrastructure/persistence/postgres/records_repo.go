package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements student.AttendanceRepository.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

// Create inserts an attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, rec *student.AttendanceRecord) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO attendance (id, student_id, date, attended, class_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.StudentID, rec.Date, rec.Attended, rec.ClassName, rec.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrStudentNotFound
		}
		return fmt.Errorf("failed to log attendance: %w", err)
	}
	return nil
}

// ListByStudent returns records dated in [from, to], newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]student.AttendanceRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, date, attended, class_name, created_at
		FROM attendance
		WHERE student_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date DESC, created_at DESC`,
		studentID, shared.Date(from), shared.Date(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var out []student.AttendanceRecord
	for rows.Next() {
		var rec student.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Attended, &rec.ClassName, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.Date = shared.Date(rec.Date)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENTS
// ══════════════════════════════════════════════════════════════════════════════

// PaymentRepository implements student.PaymentRepository.
type PaymentRepository struct {
	conn *Connection
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(conn *Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

// Save upserts the entry for the student and month. On conflict the stored
// row keeps its ID, and rec.ID is updated to match.
func (r *PaymentRepository) Save(ctx context.Context, rec *student.PaymentRecord) error {
	var id string
	err := r.conn.QueryRow(ctx, `
		INSERT INTO payments (id, student_id, month, year, amount_cents, status, payment_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, year, month) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			status = EXCLUDED.status,
			payment_date = EXCLUDED.payment_date
		RETURNING id`,
		rec.ID, rec.StudentID, rec.Month, rec.Year, int64(rec.Amount),
		string(rec.Status), rec.PaymentDate, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrStudentNotFound
		}
		return fmt.Errorf("failed to save payment: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByStudent returns entries newest period first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]student.PaymentRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, month, year, amount_cents, status, payment_date, created_at
		FROM payments
		WHERE student_id = $1
		ORDER BY year DESC, month DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []student.PaymentRecord
	for rows.Next() {
		var (
			rec    student.PaymentRecord
			amount int64
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Month, &rec.Year, &amount, &status, &rec.PaymentDate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		rec.Amount = shared.Cents(amount)
		rec.Status = student.PaymentStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
