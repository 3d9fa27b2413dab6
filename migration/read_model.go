package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"raillink/entity"
	"raillink/pubsub/event"
)

type DataLake interface {
	GetEvents(ctx context.Context) ([]entity.DataLakeEvent, error)
}

// MigrateReadModel replays every event stored in the data lake into the ops
// read model. Handlers are idempotent, so it is safe to run it next to the
// live event handlers.
func MigrateReadModel(ctx context.Context, dl DataLake, rm event.OpsReadModel) (int, error) {
	logger := log.FromContext(ctx)
	logger.Info("Migrating read model")

	events, err := dl.GetEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not get events from data lake: %w", err)
	}

	logger.WithField("events_count", len(events)).Info("Has events to migrate")

	migrated := 0
	for _, dataLakeEvent := range events {
		if err := ctx.Err(); err != nil {
			return migrated, err
		}

		start := time.Now()

		logger := logger.WithFields(logrus.Fields{
			"event_name": dataLakeEvent.Name,
			"event_id":   dataLakeEvent.ID,
		})

		ok, err := migrateEvent(ctx, dataLakeEvent, rm)
		if err != nil {
			return migrated, fmt.Errorf("could not migrate event %s (%s): %w", dataLakeEvent.ID, dataLakeEvent.Name, err)
		}
		if !ok {
			logger.Warn("Skipping event unknown to the read model")
			continue
		}

		migrated++
		logger.WithField("duration", time.Since(start)).Debug("Event migrated")
	}

	logger.WithField("migrated", migrated).Info("Read model migrated")

	return migrated, nil
}

func migrateEvent(ctx context.Context, dataLakeEvent entity.DataLakeEvent, rm event.OpsReadModel) (bool, error) {
	switch dataLakeEvent.Name {
	case "TicketBooked_v1":
		return replay(ctx, dataLakeEvent, rm.OnTicketBooked)
	case "TicketCancelled_v1":
		return replay(ctx, dataLakeEvent, rm.OnTicketCancelled)
	case "TicketCompleted_v1":
		return replay(ctx, dataLakeEvent, rm.OnTicketCompleted)
	case "PaymentRecorded_v1":
		return replay(ctx, dataLakeEvent, rm.OnPaymentRecorded)
	case "PaymentStatusUpdated_v1":
		return replay(ctx, dataLakeEvent, rm.OnPaymentStatusUpdated)
	default:
		return false, nil
	}
}

func replay[T any](
	ctx context.Context,
	dataLakeEvent entity.DataLakeEvent,
	handle func(ctx context.Context, event *T) error,
) (bool, error) {
	eventInstance := new(T)

	if err := json.Unmarshal(dataLakeEvent.Payload, eventInstance); err != nil {
		return false, fmt.Errorf("could not unmarshal event %s: %w", dataLakeEvent.Name, err)
	}

	return true, handle(ctx, eventInstance)
}
