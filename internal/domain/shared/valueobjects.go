package shared

import (
	"fmt"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// StudentID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a student. Generated IDs look like "Ana4821"; IDs of
// students enrolled without a name are UUIDs.
type StudentID string

// IsValid checks if the ID is non-empty and free of whitespace.
func (s StudentID) IsValid() bool {
	v := string(s)
	return len(v) > 0 && len(v) <= 64 && !strings.ContainsAny(v, " \t\n\r/")
}

// String returns the ID as a string.
func (s StudentID) String() string {
	return string(s)
}

// NewStudentID validates id.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", ErrInvalidStudentID
	}
	return sid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Cents is an amount of money in the smallest currency unit.
type Cents int64

// IsValid checks that the amount is not negative.
func (c Cents) IsValid() bool {
	return c >= 0
}

// String renders the amount with two decimals, e.g. "150.00".
func (c Cents) String() string {
	return fmt.Sprintf("%d.%02d", int64(c)/100, int64(c)%100)
}

// ═══════════════════════════════════════════════════════════════════════════
// Date Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to midnight UTC of its calendar day in t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
