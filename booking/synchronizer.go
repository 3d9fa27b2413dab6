package booking

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"go.opentelemetry.io/otel/attribute"

	"raillink/entity"
	"raillink/metrics"
)

// Synchronizer promotes Booked tickets whose departure has passed to
// Completed. A pass is idempotent, so it can run on every read and on a timer.
type Synchronizer struct {
	tx      Transactor
	tickets TicketLedger
	events  EventPublisher

	now func() time.Time
}

func NewSynchronizer(tx Transactor, tickets TicketLedger, events EventPublisher) *Synchronizer {
	if tx == nil {
		panic("missing tx")
	}
	if tickets == nil {
		panic("missing tickets")
	}
	if events == nil {
		panic("missing events")
	}

	return &Synchronizer{
		tx:      tx,
		tickets: tickets,
		events:  events,
		now:     time.Now,
	}
}

// Run does one pass over all users and returns the number of completed tickets.
func (s *Synchronizer) Run(ctx context.Context) (int, error) {
	return s.sync(ctx, "")
}

func (s *Synchronizer) SyncUser(ctx context.Context, userID string) (int, error) {
	if err := entity.ValidateID("user id", userID); err != nil {
		return 0, err
	}

	return s.sync(ctx, userID)
}

func (s *Synchronizer) sync(ctx context.Context, userID string) (completedCount int, err error) {
	ctx, span := tracer.Start(ctx, "booking.Synchronize")
	span.SetAttributes(attribute.String("user_id", userID))
	defer func() {
		span.SetAttributes(attribute.Int("completed", completedCount))
		endSpan(span, err)
	}()

	started := time.Now()
	defer func() {
		metrics.SyncPassDuration.Observe(time.Since(started).Seconds())
	}()

	now := s.now().UTC()

	var completed []entity.Ticket
	err = inTransaction(ctx, s.tx, func(ctx context.Context) error {
		var err error
		completed, err = s.tickets.CompleteDeparted(ctx, now, userID)
		if err != nil {
			return err
		}

		for _, ticket := range completed {
			completedAt := now
			if ticket.CompletedAt != nil {
				completedAt = *ticket.CompletedAt
			}

			err := s.events.Publish(ctx, entity.TicketCompleted_v1{
				Header:      entity.NewEventHeaderWithIdempotencyKey("complete-" + ticket.ID),
				TicketID:    ticket.ID,
				UserID:      ticket.UserID,
				ScheduleID:  ticket.ScheduleID,
				Class:       ticket.Class,
				CompletedAt: completedAt,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(completed) > 0 {
		metrics.TicketsCompleted.Add(float64(len(completed)))
		log.FromContext(ctx).WithField("completed", len(completed)).Info("Completed departed tickets")
	}

	return len(completed), nil
}

// RunPeriodically runs a pass immediately and then every interval until ctx
// is done. Failed passes are logged and retried on the next tick.
func (s *Synchronizer) RunPeriodically(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			log.FromContext(ctx).WithError(err).Error("Synchronizer pass failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
