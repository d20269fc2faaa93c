package query

import (
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
)

// StudentView is the wire form of a student record.
type StudentView struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	DateOfBirth       string        `json:"date_of_birth"`
	Category          belt.Category `json:"category"`
	CurrentRank       belt.Rank     `json:"current_rank"`
	Belt              string        `json:"belt"`
	JoinDate          string        `json:"join_date"`
	LastPromotionDate *string       `json:"last_promotion_date"`
	Email             string        `json:"email,omitempty"`
	Phone             string        `json:"phone,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	Status            string        `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

const dateLayout = "2006-01-02"

// NewStudentView converts s for output.
func NewStudentView(s *student.Student) StudentView {
	v := StudentView{
		ID:          s.ID,
		Name:        s.Name,
		DateOfBirth: s.DateOfBirth.Format(dateLayout),
		Category:    s.Category,
		CurrentRank: s.CurrentRank,
		Belt:        s.CurrentRank.String(),
		JoinDate:    s.JoinDate.Format(dateLayout),
		Email:       s.Email,
		Phone:       s.Phone,
		Notes:       s.Notes,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.LastPromotionDate != nil {
		d := s.LastPromotionDate.Format(dateLayout)
		v.LastPromotionDate = &d
	}
	return v
}

// NewStudentViews converts a list.
func NewStudentViews(students []*student.Student) []StudentView {
	out := make([]StudentView, 0, len(students))
	for _, s := range students {
		out = append(out, NewStudentView(s))
	}
	return out
}
