package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	// Student events
	EventStudentEnrolled    EventType = "student.enrolled"
	EventStudentDeactivated EventType = "student.deactivated"

	// Belt events
	EventPromotionEligible EventType = "belt.promotion_eligible"
	EventStudentPromoted   EventType = "belt.promoted"

	// Training and billing events
	EventAttendanceLogged EventType = "attendance.logged"
	EventPaymentRecorded  EventType = "payment.recorded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Meta returns the common event fields.
func (e BaseEvent) Meta() BaseEvent {
	return e
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentEnrolledEvent is emitted when a student joins the academy.
type StudentEnrolledEvent struct {
	BaseEvent
	Name     string `json:"name"`
	Category string `json:"category"`
	Rank     string `json:"rank"`
}

// Payload implements Event interface.
func (e StudentEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":     e.Name,
		"category": e.Category,
		"rank":     e.Rank,
	}
}

// NewStudentEnrolledEvent creates a new StudentEnrolledEvent.
func NewStudentEnrolledEvent(studentID, name, category, rank string) StudentEnrolledEvent {
	return StudentEnrolledEvent{
		BaseEvent: NewBaseEvent(EventStudentEnrolled, studentID),
		Name:      name,
		Category:  category,
		Rank:      rank,
	}
}

// StudentDeactivatedEvent is emitted when a student leaves the academy.
type StudentDeactivatedEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e StudentDeactivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{}
}

// NewStudentDeactivatedEvent creates a new StudentDeactivatedEvent.
func NewStudentDeactivatedEvent(studentID string) StudentDeactivatedEvent {
	return StudentDeactivatedEvent{BaseEvent: NewBaseEvent(EventStudentDeactivated, studentID)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Belt Events
// ═══════════════════════════════════════════════════════════════════════════

// PromotionEligibleEvent is emitted when a scan finds a student who may be
// promoted. Nothing is changed; an operator still has to confirm.
type PromotionEligibleEvent struct {
	BaseEvent
	CurrentRank string    `json:"current_rank"`
	NextRank    string    `json:"next_rank"`
	Reason      string    `json:"reason"`
	AsOf        time.Time `json:"as_of"`
}

// Payload implements Event interface.
func (e PromotionEligibleEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_rank": e.CurrentRank,
		"next_rank":    e.NextRank,
		"reason":       e.Reason,
		"as_of":        e.AsOf.Format(DateLayout),
	}
}

// NewPromotionEligibleEvent creates a new PromotionEligibleEvent.
func NewPromotionEligibleEvent(studentID, currentRank, nextRank, reason string, asOf time.Time) PromotionEligibleEvent {
	return PromotionEligibleEvent{
		BaseEvent:   NewBaseEvent(EventPromotionEligible, studentID),
		CurrentRank: currentRank,
		NextRank:    nextRank,
		Reason:      reason,
		AsOf:        asOf,
	}
}

// StudentPromotedEvent is emitted after a confirmed promotion is stored.
type StudentPromotedEvent struct {
	BaseEvent
	PromotionID   string    `json:"promotion_id"`
	FromRank      string    `json:"from_rank"`
	ToRank        string    `json:"to_rank"`
	PromotionDate time.Time `json:"promotion_date"`
	ConfirmedBy   string    `json:"confirmed_by"`
}

// Payload implements Event interface.
func (e StudentPromotedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"promotion_id":   e.PromotionID,
		"from_rank":      e.FromRank,
		"to_rank":        e.ToRank,
		"promotion_date": e.PromotionDate.Format(DateLayout),
		"confirmed_by":   e.ConfirmedBy,
	}
}

// NewStudentPromotedEvent creates a new StudentPromotedEvent.
func NewStudentPromotedEvent(studentID, promotionID, fromRank, toRank string, date time.Time, confirmedBy string) StudentPromotedEvent {
	return StudentPromotedEvent{
		BaseEvent:     NewBaseEvent(EventStudentPromoted, studentID),
		PromotionID:   promotionID,
		FromRank:      fromRank,
		ToRank:        toRank,
		PromotionDate: date,
		ConfirmedBy:   confirmedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance & Payment Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceLoggedEvent is emitted when a class attendance is recorded.
type AttendanceLoggedEvent struct {
	BaseEvent
	Date      time.Time `json:"date"`
	Attended  bool      `json:"attended"`
	ClassName string    `json:"class_name"`
}

// Payload implements Event interface.
func (e AttendanceLoggedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":       e.Date.Format(DateLayout),
		"attended":   e.Attended,
		"class_name": e.ClassName,
	}
}

// NewAttendanceLoggedEvent creates a new AttendanceLoggedEvent.
func NewAttendanceLoggedEvent(studentID string, date time.Time, attended bool, className string) AttendanceLoggedEvent {
	return AttendanceLoggedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceLogged, studentID),
		Date:      date,
		Attended:  attended,
		ClassName: className,
	}
}

// PaymentRecordedEvent is emitted when a monthly fee entry is stored.
type PaymentRecordedEvent struct {
	BaseEvent
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	Amount int64  `json:"amount_cents"`
	Status string `json:"status"`
}

// Payload implements Event interface.
func (e PaymentRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"month":        e.Month,
		"year":         e.Year,
		"amount_cents": e.Amount,
		"status":       e.Status,
	}
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent.
func NewPaymentRecordedEvent(studentID string, month, year int, amount int64, status string) PaymentRecordedEvent {
	return PaymentRecordedEvent{
		BaseEvent: NewBaseEvent(EventPaymentRecorded, studentID),
		Month:     month,
		Year:      year,
		Amount:    amount,
		Status:    status,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
