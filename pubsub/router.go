package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"raillink/entity"
	"raillink/pubsub/bus"
	"raillink/pubsub/command"
	"raillink/pubsub/event"
	"raillink/pubsub/outbox"
)

type DataLake interface {
	StoreEvent(ctx context.Context, dataLakeEvent entity.DataLakeEvent) error
}

func NewWatermillRouter(
	postgresSubscriber message.Subscriber,
	redisClient *redis.Client,
	redisPublisher message.Publisher,
	eventProcessorConfig cqrs.EventProcessorConfig,
	eventHandler event.Handler,
	commandProcessorConfig cqrs.CommandProcessorConfig,
	commandHandler command.Handler,
	dataLake DataLake,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router)

	outbox.AddForwarderHandler(postgresSubscriber, redisPublisher, router, watermillLogger)

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}

	if err := eventProcessor.AddHandlers(eventHandler.Handlers()...); err != nil {
		return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
	}

	commandProcessor, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create command processor: %w", err)
	}

	if err := commandProcessor.AddHandlers(commandHandler.SyncTicketStatusesHandler()); err != nil {
		return nil, fmt.Errorf("could not add handlers to command processor: %w", err)
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		bus.EventsTopic,
		NewRedisSubscriber(redisClient, "svc-raillink.events_splitter", watermillLogger),
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			return redisPublisher.Publish(bus.PerEventTopic(eventName), msg)
		},
	)

	router.AddNoPublisherHandler(
		"store_to_data_lake",
		bus.EventsTopic,
		NewRedisSubscriber(redisClient, "svc-raillink.store_to_data_lake", watermillLogger),
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			// only the header is needed, the payload is stored as is
			type Event struct {
				Header entity.EventHeader `json:"header"`
			}

			var event Event
			if err := bus.Marshaler.Unmarshal(msg, &event); err != nil {
				return fmt.Errorf("could not unmarshal event: %w", err)
			}

			return dataLake.StoreEvent(
				msg.Context(),
				entity.DataLakeEvent{
					ID:          event.Header.ID,
					PublishedAt: event.Header.PublishedAt,
					Name:        eventName,
					Payload:     msg.Payload,
				},
			)
		},
	)

	return router, nil
}
