package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand registers a new student. Students who arrive already
// graded pass their current belt and, if known, their last promotion date.
type EnrollStudentCommand struct {
	Name        string    `validate:"required,max=120"`
	DateOfBirth time.Time `validate:"required"`
	Category    string    `validate:"required"`
	Belt        string    `validate:"required"`
	Stripes     int       `validate:"gte=0"`

	// JoinDate defaults to today.
	JoinDate          time.Time
	LastPromotionDate *time.Time

	Email string `validate:"omitempty,email,max=254"`
	Phone string `validate:"max=32"`
	Notes string `validate:"max=2000"`

	CorrelationID string
}

// Validate validates the command.
func (c EnrollStudentCommand) Validate() error {
	return validateStruct("EnrollStudent", c)
}

// EnrollStudentResult contains the enrolled student.
type EnrollStudentResult struct {
	Student *student.Student
	Events  []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// idClashRetries bounds re-generation when another enrollment takes the same
// ID between the existence check and the insert.
const idClashRetries = 3

// EnrollStudentHandler handles EnrollStudentCommand.
type EnrollStudentHandler struct {
	students  student.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	loc       *time.Location
	log       *logger.Logger
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(
	students student.Repository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) *EnrollStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EnrollStudentHandler{
		students:  students,
		publisher: publisher,
		clock:     clock,
		loc:       loc,
		log:       log,
	}
}

// Handle executes the command.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*EnrollStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	category, err := belt.ParseCategory(cmd.Category)
	if err != nil {
		return nil, shared.ErrInvalidCategory
	}
	rank, err := parseRank("EnrollStudent", cmd.Belt, cmd.Stripes)
	if err != nil {
		return nil, err
	}

	if cmd.LastPromotionDate != nil {
		if err := notAfterToday("EnrollStudent", "last_promotion_date", *cmd.LastPromotionDate, h.clock, h.loc); err != nil {
			return nil, err
		}
	}

	params := student.NewStudentParams{
		Name:              cmd.Name,
		DateOfBirth:       cmd.DateOfBirth,
		Category:          category,
		Rank:              rank,
		JoinDate:          orToday(cmd.JoinDate, h.clock, h.loc),
		LastPromotionDate: cmd.LastPromotionDate,
		Email:             cmd.Email,
		Phone:             cmd.Phone,
		Notes:             cmd.Notes,
	}

	var s *student.Student
	for attempt := 1; ; attempt++ {
		params.ID, err = student.GenerateID(ctx, cmd.Name, h.students.Exists)
		if err != nil {
			return nil, fmt.Errorf("generate student id: %w", err)
		}
		if s, err = student.NewStudent(params); err != nil {
			return nil, err
		}

		err = h.students.Create(ctx, s)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrStudentAlreadyExists) || attempt == idClashRetries {
			return nil, fmt.Errorf("create student: %w", err)
		}
	}

	event := shared.NewStudentEnrolledEvent(s.ID, s.Name, string(s.Category), s.CurrentRank.String())
	event.BaseEvent = withCorrelation(event.BaseEvent, cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish enrollment", logger.StudentID(s.ID), logger.Err(err))
	}

	h.log.Info("student enrolled",
		logger.StudentID(s.ID),
		logger.Category(string(s.Category)),
		logger.Rank(s.CurrentRank.String()),
	)

	return &EnrollStudentResult{Student: s, Events: []shared.Event{event}}, nil
}
