// Package events carries domain events from the property state machine to
// the notification side effects. A committed transition publishes an Event;
// a Handler consumes it off the request path, either in process (Queue) or
// through RabbitMQ (AMQPPublisher / AMQPConsumer).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// Type names an event. Values double as AMQP routing keys.
type Type string

const (
	// PriceChanged fires when a public price of an approved listing changes.
	PriceChanged Type = "property.price_changed"
	// DealClosed fires when a property moves into sold or rented.
	DealClosed Type = "property.deal_closed"
	// PropertySubmitted fires when a new listing awaits moderation.
	PropertySubmitted Type = "property.submitted"
	// PropertyReviewed fires when an admin approves or rejects a listing.
	PropertyReviewed Type = "property.reviewed"
)

// Event is the envelope for every domain event. Fields not used by a Type are
// left zero.
type Event struct {
	ID         string                `json:"id"`
	Type       Type                  `json:"type"`
	OccurredAt time.Time             `json:"occurred_at"`
	PropertyID uint                  `json:"property_id"`
	Title      string                `json:"title"`
	Status     domain.PropertyStatus `json:"status,omitempty"`
	DealType   domain.DealType       `json:"deal_type,omitempty"`
	ActorID    uint                  `json:"actor_id,omitempty"`
	OwnerIDs   []uint                `json:"owner_ids,omitempty"`

	OldSale *float64 `json:"old_sale,omitempty"`
	NewSale *float64 `json:"new_sale,omitempty"`
	OldRent *float64 `json:"old_rent,omitempty"`
	NewRent *float64 `json:"new_rent,omitempty"`
}

// New stamps an event with a fresh ID and the current time.
func New(t Type, propertyID uint, title string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		PropertyID: propertyID,
		Title:      title,
	}
}

// Publisher hands an event to a transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Inline runs the handler synchronously inside Publish; handler errors are
// returned to the caller.
type Inline struct {
	Handler Handler
}

// Publish implements Publisher.
func (p Inline) Publish(ctx context.Context, e Event) error {
	if p.Handler == nil {
		return nil
	}
	return p.Handler.Handle(ctx, e)
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
