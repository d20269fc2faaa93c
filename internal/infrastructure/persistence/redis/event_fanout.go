package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
)

// Publisher is the part of Cache the fan-out needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// EventFanout mirrors domain events onto a Redis channel as envelopes so
// tools outside the service (front desk screens, messaging bots) can react.
type EventFanout struct {
	pub     Publisher
	channel string
	timeout time.Duration
}

// NewEventFanout creates a fan-out publishing on EventsChannel.
func NewEventFanout(pub Publisher) *EventFanout {
	return &EventFanout{pub: pub, channel: EventsChannel, timeout: 2 * time.Second}
}

// Handle is a shared.EventHandler.
func (f *EventFanout) Handle(event shared.Event) error {
	env, err := Envelope(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.pub.Publish(ctx, f.channel, env); err != nil {
		return fmt.Errorf("fan out %s: %w", event.EventType(), err)
	}
	return nil
}

// Envelope wraps event for transport.
func Envelope(event shared.Event) (shared.EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return shared.EventEnvelope{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	env := shared.EventEnvelope{
		ID:          uuid.NewString(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if m, ok := event.(interface{ Meta() shared.BaseEvent }); ok {
		env.Version = m.Meta().Version
		env.CorrelationID = m.Meta().CorrelationID
	}
	return env, nil
}
