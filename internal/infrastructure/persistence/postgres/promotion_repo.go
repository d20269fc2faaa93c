package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
)

// PromotionRepository implements student.PromotionRepository.
type PromotionRepository struct {
	conn *Connection
}

// NewPromotionRepository creates a new PromotionRepository.
func NewPromotionRepository(conn *Connection) *PromotionRepository {
	return &PromotionRepository{conn: conn}
}

// ApplyPromotion updates the student's rank and appends the history row in
// one transaction. The UPDATE only matches while last_promotion_date still
// equals expectedLast, so two operators confirming the same promotion
// cannot both win.
func (r *PromotionRepository) ApplyPromotion(ctx context.Context, rec *student.PromotionRecord, expectedLast *time.Time) error {
	var expected *time.Time
	if expectedLast != nil {
		d := shared.Date(*expectedLast)
		expected = &d
	}
	date := shared.Date(rec.Date)

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE students SET
				belt_color = $1,
				stripes = $2,
				last_promotion_date = $3
			WHERE id = $4
			  AND status = $5
			  AND last_promotion_date IS NOT DISTINCT FROM $6::date`,
			string(rec.To.Color),
			rec.To.Stripes,
			date,
			rec.StudentID,
			string(student.StatusActive),
			expected,
		)
		if err != nil {
			return fmt.Errorf("failed to update rank: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifyMissedPromotion(ctx, tx, rec.StudentID)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO promotions (
				id, student_id, date, from_color, from_stripes,
				to_color, to_stripes, notes, confirmed_by, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID,
			rec.StudentID,
			date,
			string(rec.From.Color),
			rec.From.Stripes,
			string(rec.To.Color),
			rec.To.Stripes,
			rec.Notes,
			rec.ConfirmedBy,
			rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record promotion: %w", err)
		}
		return nil
	})
}

// classifyMissedPromotion explains why the guarded UPDATE matched nothing.
func classifyMissedPromotion(ctx context.Context, q Querier, id string) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM students WHERE id = $1`, id).Scan(&status)
	switch {
	case IsNoRows(err):
		return shared.ErrStudentNotFound
	case err != nil:
		return fmt.Errorf("failed to read student status: %w", err)
	case status != string(student.StatusActive):
		return shared.ErrStudentNotActive
	default:
		return shared.ErrPromotionConflict
	}
}

// ListByStudent returns the rank history newest first.
func (r *PromotionRepository) ListByStudent(ctx context.Context, studentID string) ([]student.PromotionRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, date, from_color, from_stripes,
		       to_color, to_stripes, notes, confirmed_by, created_at
		FROM promotions
		WHERE student_id = $1
		ORDER BY date DESC, created_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var out []student.PromotionRecord
	for rows.Next() {
		var (
			rec      student.PromotionRecord
			from, to string
		)
		if err := rows.Scan(
			&rec.ID, &rec.StudentID, &rec.Date,
			&from, &rec.From.Stripes,
			&to, &rec.To.Stripes,
			&rec.Notes, &rec.ConfirmedBy, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		rec.From.Color = belt.Color(from)
		rec.To.Color = belt.Color(to)
		rec.Date = shared.Date(rec.Date)
		out = append(out, rec)
	}
	return out, rows.Err()
}
