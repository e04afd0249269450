// Package events carries domain events (bookings, assignment transitions)
// to live subscribers such as the SSE endpoint.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	ReservationCreated  Type = "reservation.created"
	ReservationDeleted  Type = "reservation.deleted"
	DutyCreated         Type = "duty.created"
	DutyUpdated         Type = "duty.updated"
	DutyDeactivated     Type = "duty.deactivated"
	AssignmentCreated   Type = "assignment.created"
	AssignmentStarted   Type = "assignment.started"
	AssignmentCompleted Type = "assignment.completed"
	AssignmentCancelled Type = "assignment.cancelled"
	UserRoleChanged     Type = "user.role_changed"
	UserDeleted         Type = "user.deleted"
)

// Event is a committed change in the scheduler.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       Type           `json:"type"`
	Resource   string         `json:"resource"`
	ActorID    uint           `json:"actor_id"`
	Origin     string         `json:"origin,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, resource string, actorID uint, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Resource:   resource,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events after the originating transaction commits.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
