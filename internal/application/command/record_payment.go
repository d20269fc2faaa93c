package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PAYMENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RecordPaymentCommand records or corrects a student's fee for one month.
// Recording the same month twice replaces the earlier entry.
type RecordPaymentCommand struct {
	StudentID   string `validate:"required,max=64"`
	Month       int    `validate:"min=1,max=12"`
	Year        int    `validate:"min=1900,max=9999"`
	AmountCents int64  `validate:"gte=0"`
	Status      string `validate:"required"`
	PaymentDate *time.Time

	CorrelationID string
}

// Validate validates the command.
func (c RecordPaymentCommand) Validate() error {
	return validateStruct("RecordPayment", c)
}

// RecordPaymentHandler handles RecordPaymentCommand.
type RecordPaymentHandler struct {
	students  student.Repository
	payments  student.PaymentRepository
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewRecordPaymentHandler creates a new RecordPaymentHandler.
func NewRecordPaymentHandler(
	students student.Repository,
	payments student.PaymentRepository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RecordPaymentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordPaymentHandler{students: students, payments: payments, publisher: publisher, log: log}
}

// Handle executes the command. Payments may be recorded for inactive
// students so old debts can be settled.
func (h *RecordPaymentHandler) Handle(ctx context.Context, cmd RecordPaymentCommand) (*student.PaymentRecord, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	status, err := student.ParsePaymentStatus(cmd.Status)
	if err != nil {
		return nil, err
	}

	s, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}

	rec, err := student.NewPaymentRecord(student.NewPaymentRecordParams{
		ID:          uuid.NewString(),
		StudentID:   s.ID,
		Month:       cmd.Month,
		Year:        cmd.Year,
		Amount:      shared.Cents(cmd.AmountCents),
		Status:      status,
		PaymentDate: cmd.PaymentDate,
	})
	if err != nil {
		return nil, err
	}
	if err := h.payments.Save(ctx, rec); err != nil {
		return nil, err
	}

	event := shared.NewPaymentRecordedEvent(s.ID, rec.Month, rec.Year, int64(rec.Amount), string(rec.Status))
	event.BaseEvent = withCorrelation(event.BaseEvent, cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish payment", logger.StudentID(s.ID), logger.Err(err))
	}
	return rec, nil
}
