// Package outbox stores events in the Postgres transaction that produced them
// and forwards them to Redis once committed.
package outbox

import (
	"context"
	stdSQL "database/sql"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"

	"raillink/db"
	"raillink/pubsub/bus"
	"raillink/tracing"
)

const outboxTopic = "events_to_forward"

var ErrNoTransaction = errors.New("outbox publishing requires a transaction")

func NewPostgresSubscriber(db *stdSQL.DB, logger watermill.LoggerAdapter) message.Subscriber {
	sub, err := sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, logger)
	if err != nil {
		panic(fmt.Errorf("could not create postgres subscriber: %w", err))
	}

	return sub
}

// InitializeSchema creates the outbox tables, so events can be stored before
// the forwarder subscribes for the first time.
func InitializeSchema(db *stdSQL.DB, logger watermill.LoggerAdapter) error {
	sub := NewPostgresSubscriber(db, logger)
	defer sub.Close()

	initializer, ok := sub.(message.SubscribeInitializer)
	if !ok {
		return fmt.Errorf("subscriber %T can't initialize schema", sub)
	}

	return initializer.SubscribeInitialize(outboxTopic)
}

func NewPublisherForDb(ctx context.Context, tx *stdSQL.Tx) (message.Publisher, error) {
	var publisher message.Publisher

	logger := log.NewWatermill(log.FromContext(ctx))

	publisher, err := sql.NewPublisher(
		tx,
		sql.PublisherConfig{
			SchemaAdapter: sql.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	publisher = forwarder.NewPublisher(publisher, forwarder.PublisherConfig{
		ForwarderTopic: outboxTopic,
	})

	// metadata has to be set before the message is wrapped in the forwarder envelope
	publisher = log.CorrelationPublisherDecorator{Publisher: publisher}
	publisher = tracing.PublisherDecorator{Publisher: publisher}

	return publisher, nil
}

func AddForwarderHandler(
	postgresSubscriber message.Subscriber,
	publisher message.Publisher,
	router *message.Router,
	logger watermill.LoggerAdapter,
) {
	_, err := forwarder.NewForwarder(
		postgresSubscriber,
		publisher,
		logger,
		forwarder.Config{
			ForwarderTopic: outboxTopic,
			Router:         router,
		},
	)
	if err != nil {
		panic(fmt.Errorf("could not create forwarder: %w", err))
	}
}

// Publisher publishes events through the outbox of the transaction carried
// in ctx.
type Publisher struct{}

func NewPublisher() Publisher {
	return Publisher{}
}

func (p Publisher) Publish(ctx context.Context, event any) error {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return ErrNoTransaction
	}

	publisher, err := NewPublisherForDb(ctx, tx.Tx)
	if err != nil {
		return err
	}

	eventBus, err := bus.NewEventBus(publisher)
	if err != nil {
		return fmt.Errorf("could not create event bus: %w", err)
	}

	return eventBus.Publish(ctx, event)
}
