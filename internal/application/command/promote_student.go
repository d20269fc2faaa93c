package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROMOTE STUDENT COMMAND
// An operator confirms the rank the engine offered. Nothing is promoted
// without that confirmation.
// ══════════════════════════════════════════════════════════════════════════════

// PromoteStudentCommand confirms a promotion.
type PromoteStudentCommand struct {
	StudentID string `validate:"required,max=64"`

	// AcceptedBelt and AcceptedStripes must equal the rank offered as of
	// PromotionDate.
	AcceptedBelt    string `validate:"required"`
	AcceptedStripes int    `validate:"gte=0"`

	// PromotionDate defaults to today and cannot be later than today.
	PromotionDate time.Time

	Confirmed   bool
	ConfirmedBy string `validate:"max=120"`
	Notes       string `validate:"max=2000"`

	CorrelationID string
}

// Validate validates the command.
func (c PromoteStudentCommand) Validate() error {
	return validateStruct("PromoteStudent", c)
}

// PromoteStudentResult contains the committed promotion.
type PromoteStudentResult struct {
	Promotion student.PromotionRecord
	Student   *student.Student
	Events    []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// PromoteStudentHandler handles PromoteStudentCommand.
type PromoteStudentHandler struct {
	students   student.Repository
	promotions student.PromotionApplier
	publisher  shared.EventPublisher
	clock      timeutil.Clock
	loc        *time.Location
	log        *logger.Logger
}

// NewPromoteStudentHandler creates a new PromoteStudentHandler.
func NewPromoteStudentHandler(
	students student.Repository,
	promotions student.PromotionApplier,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) *PromoteStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PromoteStudentHandler{
		students:   students,
		promotions: promotions,
		publisher:  publisher,
		clock:      clock,
		loc:        loc,
		log:        log,
	}
}

// Handle re-evaluates the student as of the promotion date and commits the
// accepted rank. The write is conditional on the last promotion date read
// here, so two operators confirming at once cannot both succeed.
func (h *PromoteStudentHandler) Handle(ctx context.Context, cmd PromoteStudentCommand) (*PromoteStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !cmd.Confirmed {
		return nil, shared.ErrPromotionNotConfirmed
	}

	accepted, err := parseRank("PromoteStudent", cmd.AcceptedBelt, cmd.AcceptedStripes)
	if err != nil {
		return nil, err
	}

	date := orToday(cmd.PromotionDate, h.clock, h.loc)
	if err := notAfterToday("PromoteStudent", "promotion_date", date, h.clock, h.loc); err != nil {
		return nil, err
	}

	s, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, shared.ErrStudentNotActive
	}

	verdict := s.Eligibility(date)
	if !verdict.Eligible {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotEligible, verdict.Reason)
	}
	if *verdict.NextRank != accepted {
		return nil, fmt.Errorf("%w: offered %s, got %s", shared.ErrRankMismatch, verdict.NextRank, accepted)
	}

	rec := student.PromotionRecord{
		ID:          uuid.NewString(),
		StudentID:   s.ID,
		Date:        date,
		From:        s.CurrentRank,
		To:          accepted,
		Notes:       cmd.Notes,
		ConfirmedBy: cmd.ConfirmedBy,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.promotions.ApplyPromotion(ctx, &rec, s.LastPromotionDate); err != nil {
		return nil, err
	}
	s.Promote(accepted, date)

	event := shared.NewStudentPromotedEvent(s.ID, rec.ID, rec.From.String(), rec.To.String(), date, rec.ConfirmedBy)
	event.BaseEvent = withCorrelation(event.BaseEvent, cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish promotion", logger.StudentID(s.ID), logger.Err(err))
	}

	h.log.Info("student promoted",
		logger.StudentID(s.ID),
		logger.String("from", rec.From.String()),
		logger.Rank(rec.To.String()),
		logger.String("confirmed_by", rec.ConfirmedBy),
	)

	return &PromoteStudentResult{Promotion: rec, Student: s, Events: []shared.Event{event}}, nil
}
