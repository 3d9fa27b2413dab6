package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"raillink/entity"
)

const (
	EventsTopic         = "events"
	internalEventsTopic = "internal-events.svc-raillink."
)

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			event, ok := params.Event.(entity.Event)
			if !ok {
				return "", fmt.Errorf("invalid event type: %T doesn't implement entity.Event", params.Event)
			}

			if event.IsInternal() {
				// Publish directly to the per-event topic
				return internalEventsTopic + params.EventName, nil
			}

			// Published events go to the "events" topic first, so they are stored
			// in the data lake and then split into per-event topics
			return EventsTopic, nil
		},
		Marshaler: Marshaler,
	})
}

// Marshaler is shared by buses, processors and the data lake handlers.
var Marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func PerEventTopic(eventName string) string {
	return EventsTopic + "." + eventName
}

func InternalEventTopic(eventName string) string {
	return internalEventsTopic + eventName
}
