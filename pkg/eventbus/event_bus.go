// Package eventbus carries cycle lifecycle notifications between the
// services that change cycles and the processes that react to them.
package eventbus

import (
	"context"

	"github.com/Happy-Ferret/ggrc-core/pkg/events"
)

// Event is any cycle notification that knows its own type.
type Event interface {
	GetType() events.EventType
}

// EventPublisher sends an event. key groups events of one workflow so a
// partitioned transport keeps them in order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes incoming events to the handler registered for
// their type. Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a decoded event, a pointer to one of the types in
// package events. A returned error asks the transport to redeliver.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
