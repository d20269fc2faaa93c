package query

import (
	"context"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
)

// ListStudentsQuery pages through the roster.
type ListStudentsQuery struct {
	Page            int
	PageSize        int
	Category        belt.Category
	IncludeInactive bool
}

// StudentListDTO is one page of the roster.
type StudentListDTO struct {
	Students []StudentView `json:"students"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ListStudentsHandler handles ListStudentsQuery.
type ListStudentsHandler struct {
	students student.Repository
}

// NewListStudentsHandler creates a new ListStudentsHandler.
func NewListStudentsHandler(students student.Repository) *ListStudentsHandler {
	return &ListStudentsHandler{students: students}
}

// Handle executes the query.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) (*StudentListDTO, error) {
	if q.Category != "" && !q.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}

	p := shared.NewPagination(q.Page, q.PageSize)
	opts := student.ListOptions{
		Offset:          p.Offset(),
		Limit:           p.Limit(),
		Category:        q.Category,
		IncludeInactive: q.IncludeInactive,
	}

	students, err := h.students.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	total, err := h.students.Count(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &StudentListDTO{
		Students: NewStudentViews(students),
		Total:    total,
		Page:     p.Page,
		PageSize: p.Limit(),
	}, nil
}
