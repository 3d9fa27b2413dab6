package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"raillink/booking"
	"raillink/db"
	"raillink/db/read_model_ops_tickets"
	"raillink/db/tickets"
	"raillink/entity"
	migrations "raillink/migration"
	"raillink/pubsub"
	"raillink/pubsub/bus"
	"raillink/pubsub/outbox"
)

type Handler struct {
	db *sqlx.DB
}

func NewHandler(postgresURL string) (*Handler, error) {
	dbConn, err := db.Open(postgresURL)
	if err != nil {
		return nil, err
	}

	if err := db.InitializeDatabaseSchema(dbConn); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("could not initialize database schema: %w", err)
	}

	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))
	if err := outbox.InitializeSchema(dbConn.DB, watermillLogger); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	return &Handler{db: dbConn}, nil
}

// Sync runs one synchronizer pass. Completion events go through the outbox
// and are forwarded by the running service.
func (h *Handler) Sync(ctx context.Context, userID string) (int, error) {
	synchronizer := booking.NewSynchronizer(
		db.NewTransactor(h.db),
		tickets.NewPostgresRepository(h.db),
		outbox.NewPublisher(),
	)

	if userID != "" {
		return synchronizer.SyncUser(ctx, userID)
	}
	return synchronizer.Run(ctx)
}

func (h *Handler) MigrateReadModel(ctx context.Context) (int, error) {
	return migrations.MigrateReadModel(
		ctx,
		db.NewDataLake(h.db),
		read_model_ops_tickets.NewOpsTicketReadModel(h.db),
	)
}

func (h *Handler) Close() error {
	return h.db.Close()
}

func RequestSync(ctx context.Context, redisAddr string, userID string) error {
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	watermillLogger := log.NewWatermill(log.FromContext(ctx))

	commandBus, err := bus.NewCommandBus(pubsub.NewRedisPublisher(redisClient, watermillLogger))
	if err != nil {
		return fmt.Errorf("could not create command bus: %w", err)
	}

	return commandBus.Send(ctx, &entity.SyncTicketStatuses{
		Header: entity.NewEventHeader(),
		UserID: userID,
	})
}
