// Package eventbus provides the notification channel for engine lifecycle
// events.
package eventbus

import (
	"context"

	"github.com/specforge/specforge/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventHandler func(ctx context.Context, event interface{}) error

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// NopPublisher discards every event. Used where no bus is configured; engine
// behavior never depends on publication succeeding.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ string, _ Event) error {
	return nil
}
