package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/specforge/specforge/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := emptyEvent(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

// emptyEvent returns a pointer to a zero event of the given type for
// unmarshalling, or nil for an unknown type.
func emptyEvent(eventType events.EventType) any {
	switch eventType {
	case events.TaskCompletedEvent:
		return &events.TaskCompleted{}
	case events.SpecCreatedEvent:
		return &events.SpecCreated{}
	case events.SpecPromotedEvent:
		return &events.SpecPromoted{}
	case events.WorkflowStartedEvent:
		return &events.WorkflowStarted{}
	case events.WorkflowPhaseCompletedEvent:
		return &events.WorkflowPhaseCompleted{}
	case events.WorkflowPhaseFailedEvent:
		return &events.WorkflowPhaseFailed{}
	case events.WorkflowPausedEvent:
		return &events.WorkflowPaused{}
	case events.WorkflowResumedEvent:
		return &events.WorkflowResumed{}
	case events.WorkflowResetEvent:
		return &events.WorkflowReset{}
	case events.BackupCreatedEvent:
		return &events.BackupCreated{}
	case events.BackupRestoredEvent:
		return &events.BackupRestored{}
	case events.BackupPrunedEvent:
		return &events.BackupPruned{}
	default:
		return nil
	}
}

var _ EventBus = (*WatermillEventBus)(nil)
