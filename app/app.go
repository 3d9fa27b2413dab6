package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"raillink/booking"
	dbLib "raillink/db"
	"raillink/db/inventory"
	"raillink/db/payments"
	"raillink/db/read_model_ops_tickets"
	"raillink/db/schedules"
	"raillink/db/tickets"
	"raillink/db/users"
	"raillink/http"
	migrations "raillink/migration"
	"raillink/pubsub"
	"raillink/pubsub/bus"
	"raillink/pubsub/command"
	"raillink/pubsub/event"
	"raillink/pubsub/outbox"
)

type Config struct {
	HTTPAddr     string
	SyncInterval time.Duration
}

type App struct {
	db              *sqlx.DB
	watermillRouter *message.Router
	watermillLogger watermill.LoggerAdapter
	httpServer      *http.Server
	synchronizer    *booking.Synchronizer
	opsReadModel    read_model_ops_tickets.OpsTicketReadModel
	dataLake        dbLib.DataLake
	traceProvider   *tracesdk.TracerProvider
	syncInterval    time.Duration
}

func New(
	cfg Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	traceProvider *tracesdk.TracerProvider,
) (App, error) {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		return App{}, fmt.Errorf("could not create command bus: %w", err)
	}

	usersRepo := users.NewPostgresRepository(db)
	schedulesRepo := schedules.NewPostgresRepository(db)
	inventoryRepo := inventory.NewPostgresRepository(db)
	ticketsRepo := tickets.NewPostgresRepository(db)
	paymentsRepo := payments.NewPostgresRepository(db)
	opsReadModel := read_model_ops_tickets.NewOpsTicketReadModel(db)
	dataLake := dbLib.NewDataLake(db)

	transactor := dbLib.NewTransactor(db)
	eventPublisher := outbox.NewPublisher()

	synchronizer := booking.NewSynchronizer(transactor, ticketsRepo, eventPublisher)
	bookingService := booking.NewService(
		transactor,
		inventoryRepo,
		ticketsRepo,
		schedulesRepo,
		usersRepo,
		eventPublisher,
		synchronizer,
	)
	paymentsService := booking.NewPayments(transactor, ticketsRepo, schedulesRepo, paymentsRepo, eventPublisher)

	watermillRouter, err := pubsub.NewWatermillRouter(
		outbox.NewPostgresSubscriber(db.DB, watermillLogger),
		redisClient,
		redisPublisher,
		event.NewProcessorConfig(redisClient, watermillLogger),
		event.NewHandler(opsReadModel),
		command.NewProcessorConfig(redisClient, watermillLogger),
		command.NewHandler(synchronizer),
		dataLake,
		watermillLogger,
	)
	if err != nil {
		return App{}, fmt.Errorf("could not create watermill router: %w", err)
	}

	httpServer := http.NewServer(
		cfg.HTTPAddr,
		bookingService,
		paymentsService,
		usersRepo,
		schedulesRepo,
		opsReadModel,
		commandBus,
	)

	return App{
		db:              db,
		watermillRouter: watermillRouter,
		watermillLogger: watermillLogger,
		httpServer:      httpServer,
		synchronizer:    synchronizer,
		opsReadModel:    opsReadModel,
		dataLake:        dataLake,
		traceProvider:   traceProvider,
		syncInterval:    cfg.SyncInterval,
	}, nil
}

func (a App) Run(ctx context.Context) error {
	if err := dbLib.InitializeDatabaseSchema(a.db); err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}
	if err := outbox.InitializeSchema(a.db.DB, a.watermillLogger); err != nil {
		return fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := migrations.MigrateReadModel(ctx, a.dataLake, a.opsReadModel)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("Could not migrate read model")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		if a.traceProvider == nil {
			return nil
		}
		return a.traceProvider.Shutdown(context.Background())
	})

	g.Go(func() error {
		return a.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		if !a.waitForRouter(ctx) {
			return nil
		}
		return a.synchronizer.RunPeriodically(ctx, a.syncInterval)
	})

	g.Go(func() error {
		// the app is not healthy before the router is ready
		if !a.waitForRouter(ctx) {
			return nil
		}
		return a.httpServer.Run(ctx)
	})

	return g.Wait()
}

func (a App) waitForRouter(ctx context.Context) bool {
	select {
	case <-a.watermillRouter.Running():
		return true
	case <-ctx.Done():
		return false
	}
}
