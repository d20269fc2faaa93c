// Package eventhandler reacts to domain events published on the bus. Handlers
// keep read models in step with the write side and never fail a publish: a
// handler error is logged by the bus and the event is dropped.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/persistence/projections"
	"github.com/faixamestre/dojo-hub/pkg/logger"
)

// StudentReader is the slice of student.Repository the handlers need.
type StudentReader interface {
	GetByID(ctx context.Context, id string) (*student.Student, error)
}

// OfferStore is the write side of the offer board.
type OfferStore interface {
	Upsert(o projections.Offer) bool
	Withdraw(studentID string) bool
}

// ═══════════════════════════════════════════════════════════════════════════
// ON PROMOTION ELIGIBLE
// ═══════════════════════════════════════════════════════════════════════════

// OnPromotionEligibleHandler puts each offer found by the eligibility scan on
// the board, after checking the student is still active and still holds the
// rank the offer was computed from.
type OnPromotionEligibleHandler struct {
	students StudentReader
	board    OfferStore
	log      *logger.Logger
	config   PromotionEligibleConfig
}

// PromotionEligibleConfig configures OnPromotionEligibleHandler.
type PromotionEligibleConfig struct {
	// LookupTimeout bounds the student read per event.
	LookupTimeout time.Duration
}

// DefaultPromotionEligibleConfig returns the defaults.
func DefaultPromotionEligibleConfig() PromotionEligibleConfig {
	return PromotionEligibleConfig{LookupTimeout: 5 * time.Second}
}

// NewOnPromotionEligibleHandler creates the handler.
func NewOnPromotionEligibleHandler(
	students StudentReader,
	board OfferStore,
	log *logger.Logger,
	config PromotionEligibleConfig,
) *OnPromotionEligibleHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = DefaultPromotionEligibleConfig().LookupTimeout
	}
	return &OnPromotionEligibleHandler{
		students: students,
		board:    board,
		log:      log.With(logger.Component("on_promotion_eligible")),
		config:   config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnPromotionEligibleHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.PromotionEligibleEvent)
	if !ok {
		h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.LookupTimeout)
	defer cancel()

	s, err := h.students.GetByID(ctx, e.AggregateID())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		h.board.Withdraw(e.AggregateID())
		return nil
	case err != nil:
		return fmt.Errorf("load student %s: %w", e.AggregateID(), err)
	}

	if !s.IsActive() {
		h.board.Withdraw(s.ID)
		return nil
	}
	// A promotion confirmed between the scan and this event makes the
	// offer stale; the promoted handler has already withdrawn it.
	if s.CurrentRank.String() != e.CurrentRank {
		h.log.Debug("stale offer skipped",
			logger.StudentID(s.ID),
			logger.String("offered_from", e.CurrentRank),
			logger.Rank(s.CurrentRank.String()),
		)
		return nil
	}

	isNew := h.board.Upsert(projections.Offer{
		StudentID:   s.ID,
		Name:        s.Name,
		Category:    s.Category.String(),
		CurrentRank: e.CurrentRank,
		NextRank:    e.NextRank,
		Reason:      e.Reason,
		AsOf:        e.AsOf,
	})
	if isNew {
		h.log.Info("student eligible for promotion",
			logger.StudentID(s.ID),
			logger.String("current_rank", e.CurrentRank),
			logger.String("next_rank", e.NextRank),
			logger.String("reason", e.Reason),
		)
	}
	return nil
}
