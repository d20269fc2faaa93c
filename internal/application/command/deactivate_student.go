package command

import (
	"context"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
)

// DeactivateStudentCommand marks a student as having left. History is kept.
type DeactivateStudentCommand struct {
	StudentID     string `validate:"required,max=64"`
	CorrelationID string
}

// DeactivateStudentHandler handles DeactivateStudentCommand.
type DeactivateStudentHandler struct {
	students  student.Repository
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewDeactivateStudentHandler creates a new DeactivateStudentHandler.
func NewDeactivateStudentHandler(students student.Repository, publisher shared.EventPublisher, log *logger.Logger) *DeactivateStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DeactivateStudentHandler{students: students, publisher: publisher, log: log}
}

// Handle executes the command.
func (h *DeactivateStudentHandler) Handle(ctx context.Context, cmd DeactivateStudentCommand) error {
	if err := validateStruct("DeactivateStudent", cmd); err != nil {
		return err
	}
	if err := h.students.Deactivate(ctx, cmd.StudentID); err != nil {
		return err
	}

	event := shared.NewStudentDeactivatedEvent(cmd.StudentID)
	event.BaseEvent = withCorrelation(event.BaseEvent, cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish deactivation", logger.StudentID(cmd.StudentID), logger.Err(err))
	}
	h.log.Info("student deactivated", logger.StudentID(cmd.StudentID))
	return nil
}
