// Package events defines the integration event contract between domain
// services and the outbox. Services record events in the same transaction
// as the document write; the relay worker delivers them after commit.
package events

import (
	"context"

	"millstock/internal/core/id"
)

// Event is a single integration event tied to an aggregate.
type Event struct {
	// AggregateType names the kind of entity the event belongs to,
	// e.g. "StockMovement".
	AggregateType string
	// AggregateID is the entity the event is about.
	AggregateID id.ID
	// Type is the event name, e.g. "movement.approved".
	Type string
	// Payload is marshalled to JSON by the publisher.
	Payload any
}

// Publisher records events for delivery after the enclosing transaction
// commits. Implementations must be called inside a transaction so the
// event and the state change share one atomic write.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}
