package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/verdant/pkg/messaging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

// CartCheckedOutEvent is published once per completed checkout.
type CartCheckedOutEvent struct {
	OrderID    uuid.UUID   `json:"order_id"`
	SessionID  string      `json:"session_id"`
	Lines      []OrderLine `json:"lines"`
	TotalItems int         `json:"total_items"`
	TotalPrice float64     `json:"total_price"`
	PlacedAt   time.Time   `json:"placed_at"`

	// Carrier holds the trace context of the checkout request.
	Carrier propagation.MapCarrier `json:"carrier,omitempty"`

	// subject overrides the default subject when set.
	subject string
}

type OrderLine struct {
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// WithSubject returns a copy of the event routed to subject.
func (e CartCheckedOutEvent) WithSubject(subject string) CartCheckedOutEvent {
	e.subject = subject
	return e
}

func (e CartCheckedOutEvent) Subject() string {
	if e.subject != "" {
		return e.subject
	}
	return messaging.CheckoutsSubject
}

// MessageID is the order id.
func (e CartCheckedOutEvent) MessageID() string {
	return e.OrderID.String()
}

func (e CartCheckedOutEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
