// Package events publishes stock domain events after their transaction has committed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	MovementCreated     = "movement.created"
	MovementValidated   = "movement.validated"
	MovementCancelled   = "movement.cancelled"
	ReservationCreated  = "reservation.created"
	ReservationReleased = "reservation.released"
)

// Event is the envelope written to the broker. Subject is the id of the entity the event is about
// and doubles as the partition key, so events of one entity stay ordered.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Subject    string    `json:"subject"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func New(eventType, subject, actorID string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events. Publishing is best effort: stock state is already committed.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

func (NopPublisher) Close() error { return nil }
