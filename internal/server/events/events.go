// Package events publishes account lifecycle events for downstream
// consumers (mailers, analytics). Delivery is best effort.
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	UserRegistered    = "user.registered"
	UserPasswordReset = "user.password_reset"
	UserUpdated       = "user.updated"
)

// Event is the JSON body of every published message.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New stamps an event with the current time.
func New(typ, userID, email string) Event {
	return Event{Type: typ, UserID: userID, Email: email, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
