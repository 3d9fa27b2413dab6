package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"raillink/tracing"
)

func NewRedisPublisher(rdb *redis.Client, watermillLogger watermill.LoggerAdapter) message.Publisher {
	var publisher message.Publisher
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, watermillLogger)
	if err != nil {
		panic(fmt.Errorf("could not create redis publisher: %w", err))
	}

	publisher = log.CorrelationPublisherDecorator{Publisher: publisher}
	publisher = tracing.PublisherDecorator{Publisher: publisher}
	return publisher
}

func NewRedisSubscriber(rdb *redis.Client, consumerGroup string, watermillLogger watermill.LoggerAdapter) message.Subscriber {
	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        rdb,
		ConsumerGroup: consumerGroup,
	}, watermillLogger)
	if err != nil {
		panic(fmt.Errorf("could not create redis subscriber: %w", err))
	}

	return subscriber
}
