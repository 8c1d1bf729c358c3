package messaging

import (
	"context"
)

// CheckoutsSubject is the default subject for completed checkouts.
const CheckoutsSubject = "storefront.checkouts.completed"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// Identified is implemented by events with a stable id. Brokers use it to
// drop duplicates of the same event.
type Identified interface {
	MessageID() string
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
