package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dukex/flowdeck/pkg/events"
)

// WatermillEventBus routes typed graph events over any watermill
// publisher/subscriber pair. Handlers for the same type are independent and
// no delivery order is guaranteed between them.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType][]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType][]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handlers, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEventPayload(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				msg.Nack()

				continue
			}

			failed := false

			for _, handler := range handlers {
				if err := handler(ctx, event); err != nil {
					failed = true

					break
				}
			}

			if failed {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

// newEventPayload returns an empty instance of the concrete event struct for
// the given type, or nil for unknown types.
func newEventPayload(eventType events.EventType) any {
	switch eventType {
	case events.NodeAddedEvent:
		return &events.NodeAdded{}
	case events.NodeUpdatedEvent:
		return &events.NodeUpdated{}
	case events.NodeRemovedEvent:
		return &events.NodeRemoved{}
	case events.InputNodeCreatedEvent:
		return &events.InputNodeCreated{}
	case events.InputNodeDeletionAttemptedEvent:
		return &events.InputNodeDeletionAttempted{}
	case events.LinkAddedEvent:
		return &events.LinkAdded{}
	case events.LinkUpdatedEvent:
		return &events.LinkUpdated{}
	case events.LinkRemovedEvent:
		return &events.LinkRemoved{}
	case events.GroupCreatedEvent:
		return &events.GroupCreated{}
	case events.GroupUpdatedEvent:
		return &events.GroupUpdated{}
	case events.GroupRemovedEvent:
		return &events.GroupRemoved{}
	case events.AnnotationAddedEvent:
		return &events.AnnotationAdded{}
	case events.AnnotationUpdatedEvent:
		return &events.AnnotationUpdated{}
	case events.AnnotationRemovedEvent:
		return &events.AnnotationRemoved{}
	case events.StateChangedEvent:
		return &events.StateChanged{}
	case events.SelectionChangedEvent:
		return &events.SelectionChanged{}
	case events.DataSavedEvent:
		return &events.DataSaved{}
	case events.SaveErrorEvent:
		return &events.SaveError{}
	case events.DestructiveChangeDetectedEvent:
		return &events.DestructiveChangeDetected{}
	case events.DataLoadedEvent:
		return &events.DataLoaded{}
	case events.BackupRestoredEvent:
		return &events.BackupRestored{}
	case events.RunStartedEvent:
		return &events.RunStarted{}
	case events.RunFinishedEvent:
		return &events.RunFinished{}
	case events.NodeExecutedEvent:
		return &events.NodeExecuted{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = append(eb.subscriptions[eventType], handler)

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
