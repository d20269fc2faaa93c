package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `
	id, name, date_of_birth, category, belt_color, stripes, join_date,
	last_promotion_date, email, phone, notes, status, created_at, updated_at`

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Name,
		s.DateOfBirth,
		string(s.Category),
		string(s.CurrentRank.Color),
		s.CurrentRank.Stripes,
		s.JoinDate,
		s.LastPromotionDate,
		s.Email,
		s.Phone,
		s.Notes,
		string(s.Status),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// GetByID returns a student by ID, matched case-insensitively.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE LOWER(id) = LOWER($1)`
	return scanStudent(r.conn.QueryRow(ctx, query, id))
}

// Update writes profile fields only. Rank and promotion date belong to
// PromotionRepository.ApplyPromotion.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students SET
			name = $1,
			date_of_birth = $2,
			category = $3,
			email = $4,
			phone = $5,
			notes = $6
		WHERE id = $7`

	tag, err := r.conn.Exec(ctx, query,
		s.Name,
		s.DateOfBirth,
		string(s.Category),
		s.Email,
		s.Phone,
		s.Notes,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// Deactivate marks the student inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE students SET status = $1 WHERE id = $2 AND status = $3`,
		string(student.StatusInactive), id, string(student.StatusActive))
	if err != nil {
		return fmt.Errorf("failed to deactivate student: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return shared.ErrStudentNotFound
	}
	return shared.ErrStudentNotActive
}

// List returns students ordered by name.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	where, args := listFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = student.DefaultListOptions().Limit
	}
	args = append(args, limit, max(opts.Offset, 0))

	query := fmt.Sprintf(`SELECT %s FROM students %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		studentColumns, where, len(args)-1, len(args))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of students matching opts.
func (r *StudentRepository) Count(ctx context.Context, opts student.ListOptions) (int, error) {
	where, args := listFilter(opts)

	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

// Exists checks an ID case-insensitively.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE LOWER(id) = LOWER($1))`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func listFilter(opts student.ListOptions) (string, []any) {
	var conds []string
	var args []any

	if !opts.IncludeInactive {
		args = append(args, string(student.StatusActive))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.Category != "" {
		args = append(args, string(opts.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var (
		s        student.Student
		category string
		color    string
		status   string
		last     *time.Time
	)

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.DateOfBirth,
		&category,
		&color,
		&s.CurrentRank.Stripes,
		&s.JoinDate,
		&last,
		&s.Email,
		&s.Phone,
		&s.Notes,
		&status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.Category = belt.Category(category)
	s.CurrentRank.Color = belt.Color(color)
	s.Status = student.Status(status)
	s.DateOfBirth = shared.Date(s.DateOfBirth)
	s.JoinDate = shared.Date(s.JoinDate)
	if last != nil {
		d := shared.Date(*last)
		s.LastPromotionDate = &d
	}
	return &s, nil
}
