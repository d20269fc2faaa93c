package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG ATTENDANCE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// LogAttendanceCommand marks a student present or absent at a class.
type LogAttendanceCommand struct {
	StudentID string `validate:"required,max=64"`

	// Date defaults to today.
	Date      time.Time
	Attended  bool
	ClassName string `validate:"max=80"`

	CorrelationID string
}

// Validate validates the command.
func (c LogAttendanceCommand) Validate() error {
	return validateStruct("LogAttendance", c)
}

// LogAttendanceHandler handles LogAttendanceCommand.
type LogAttendanceHandler struct {
	students   student.Repository
	attendance student.AttendanceRepository
	publisher  shared.EventPublisher
	clock      timeutil.Clock
	loc        *time.Location
	log        *logger.Logger
}

// NewLogAttendanceHandler creates a new LogAttendanceHandler.
func NewLogAttendanceHandler(
	students student.Repository,
	attendance student.AttendanceRepository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) *LogAttendanceHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LogAttendanceHandler{
		students:   students,
		attendance: attendance,
		publisher:  publisher,
		clock:      clock,
		loc:        loc,
		log:        log,
	}
}

// Handle executes the command. Attendance is only taken for active students.
func (h *LogAttendanceHandler) Handle(ctx context.Context, cmd LogAttendanceCommand) (*student.AttendanceRecord, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, shared.ErrStudentNotActive
	}

	rec, err := student.NewAttendanceRecord(uuid.NewString(), s.ID,
		orToday(cmd.Date, h.clock, h.loc), cmd.Attended, cmd.ClassName)
	if err != nil {
		return nil, err
	}
	if err := h.attendance.Create(ctx, rec); err != nil {
		return nil, err
	}

	event := shared.NewAttendanceLoggedEvent(s.ID, rec.Date, rec.Attended, rec.ClassName)
	event.BaseEvent = withCorrelation(event.BaseEvent, cmd.CorrelationID)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish attendance", logger.StudentID(s.ID), logger.Err(err))
	}
	return rec, nil
}
