package eventhandler

import (
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/pkg/logger"
)

// OnStudentChangedHandler withdraws pending offers once they no longer apply:
// the student was promoted or left the academy.
type OnStudentChangedHandler struct {
	board OfferStore
	log   *logger.Logger
}

// NewOnStudentChangedHandler creates the handler.
func NewOnStudentChangedHandler(board OfferStore, log *logger.Logger) *OnStudentChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnStudentChangedHandler{
		board: board,
		log:   log.With(logger.Component("on_student_changed")),
	}
}

// EventTypes lists the events this handler subscribes to.
func (h *OnStudentChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventStudentPromoted, shared.EventStudentDeactivated}
}

// Handle implements shared.EventHandler.
func (h *OnStudentChangedHandler) Handle(event shared.Event) error {
	switch event.(type) {
	case shared.StudentPromotedEvent, shared.StudentDeactivatedEvent:
	default:
		return nil
	}

	if h.board.Withdraw(event.AggregateID()) {
		h.log.Debug("offer withdrawn",
			logger.StudentID(event.AggregateID()),
			logger.String("event_type", string(event.EventType())),
		)
	}
	return nil
}
