package query

import (
	"context"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST UPCOMING PROMOTIONS QUERY
// The dashboard widget: active students who may advance today.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultUpcomingLimit is used when the query sets no limit.
const DefaultUpcomingLimit = 5

// MaxUpcomingLimit caps the limit a caller may ask for.
const MaxUpcomingLimit = 100

// ListUpcomingPromotionsQuery lists eligible students in roster order.
type ListUpcomingPromotionsQuery struct {
	// AsOf defaults to today in the academy timezone.
	AsOf time.Time

	// Limit defaults to the handler's configured limit.
	Limit int

	// Category restricts the list when set.
	Category belt.Category
}

// UpcomingPromotionDTO is one entry of the list.
type UpcomingPromotionDTO struct {
	StudentID     string        `json:"student_id"`
	Name          string        `json:"name"`
	Category      belt.Category `json:"category"`
	CurrentRank   belt.Rank     `json:"current_rank"`
	NextRank      belt.Rank     `json:"next_rank"`
	Reason        string        `json:"reason"`
	MonthsInGrade int           `json:"months_in_grade"`
}

// UpcomingPromotionsDTO is the query result.
type UpcomingPromotionsDTO struct {
	AsOf       time.Time              `json:"as_of"`
	Promotions []UpcomingPromotionDTO `json:"promotions"`
}

// ListUpcomingPromotionsHandler handles ListUpcomingPromotionsQuery.
type ListUpcomingPromotionsHandler struct {
	students     student.Repository
	clock        timeutil.Clock
	loc          *time.Location
	defaultLimit int
	pageSize     int
}

// NewListUpcomingPromotionsHandler creates the handler. A non-positive
// defaultLimit means DefaultUpcomingLimit.
func NewListUpcomingPromotionsHandler(students student.Repository, clock timeutil.Clock, loc *time.Location, defaultLimit int) *ListUpcomingPromotionsHandler {
	if defaultLimit <= 0 {
		defaultLimit = DefaultUpcomingLimit
	}
	return &ListUpcomingPromotionsHandler{
		students:     students,
		clock:        clock,
		loc:          loc,
		defaultLimit: defaultLimit,
		pageSize:     100,
	}
}

// Handle walks the active roster page by page until limit eligible students
// are found.
func (h *ListUpcomingPromotionsHandler) Handle(ctx context.Context, q ListUpcomingPromotionsQuery) (*UpcomingPromotionsDTO, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = h.defaultLimit
	}
	limit = min(limit, MaxUpcomingLimit)

	asOf := resolveAsOf(q.AsOf, h.clock, h.loc)
	result := &UpcomingPromotionsDTO{AsOf: asOf, Promotions: make([]UpcomingPromotionDTO, 0, limit)}

	opts := student.ListOptions{Limit: h.pageSize, Category: q.Category}
	for {
		page, err := h.students.List(ctx, opts)
		if err != nil {
			return nil, err
		}

		for _, s := range page {
			verdict := s.Eligibility(asOf)
			if !verdict.Eligible {
				continue
			}
			result.Promotions = append(result.Promotions, UpcomingPromotionDTO{
				StudentID:     s.ID,
				Name:          s.Name,
				Category:      s.Category,
				CurrentRank:   s.CurrentRank,
				NextRank:      *verdict.NextRank,
				Reason:        verdict.Reason,
				MonthsInGrade: s.MonthsInGrade(asOf),
			})
			if len(result.Promotions) == limit {
				return result, nil
			}
		}

		if len(page) < opts.Limit {
			return result, nil
		}
		opts.Offset += opts.Limit
	}
}
