package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"raillink/entity"
	"raillink/metrics"
)

type Service struct {
	tx           Transactor
	inventory    Inventory
	tickets      TicketLedger
	schedules    ScheduleLookup
	users        UserLookup
	events       EventPublisher
	synchronizer *Synchronizer

	now func() time.Time
}

func NewService(
	tx Transactor,
	inventory Inventory,
	tickets TicketLedger,
	schedules ScheduleLookup,
	users UserLookup,
	events EventPublisher,
	synchronizer *Synchronizer,
) *Service {
	if tx == nil {
		panic("missing tx")
	}
	if inventory == nil {
		panic("missing inventory")
	}
	if tickets == nil {
		panic("missing tickets")
	}
	if schedules == nil {
		panic("missing schedules")
	}
	if users == nil {
		panic("missing users")
	}
	if events == nil {
		panic("missing events")
	}
	if synchronizer == nil {
		panic("missing synchronizer")
	}

	return &Service{
		tx:           tx,
		inventory:    inventory,
		tickets:      tickets,
		schedules:    schedules,
		users:        users,
		events:       events,
		synchronizer: synchronizer,
		now:          time.Now,
	}
}

// Book reserves one seat and creates a Booked ticket for it.
func (s *Service) Book(ctx context.Context, cmd entity.BookTicket) (ticket entity.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "booking.Book")
	span.SetAttributes(
		attribute.String("schedule_id", cmd.ScheduleID),
		attribute.String("class", string(cmd.Class)),
	)
	defer func() {
		classLabel := string(cmd.Class)
		if cmd.Class.Validate() != nil {
			classLabel = "unknown"
		}
		metrics.BookingsTotal.WithLabelValues(classLabel, metrics.Outcome(err)).Inc()
		endSpan(span, err)
	}()

	if err := cmd.Validate(); err != nil {
		return entity.Ticket{}, err
	}

	if err := s.checkUser(ctx, cmd.UserID); err != nil {
		return entity.Ticket{}, err
	}

	schedule, err := s.schedules.Get(ctx, cmd.ScheduleID)
	if err != nil {
		return entity.Ticket{}, asTransactionFailure(err)
	}
	if schedule.Status == entity.ScheduleStatusCancelled {
		return entity.Ticket{}, fmt.Errorf("%w: schedule %s is cancelled", entity.ErrValidation, schedule.ID)
	}

	ticket = entity.Ticket{
		ID:         uuid.NewString(),
		UserID:     cmd.UserID,
		ScheduleID: cmd.ScheduleID,
		Class:      cmd.Class,
		Status:     entity.TicketStatusBooked,
		CreatedAt:  s.now().UTC(),
	}

	err = inTransaction(ctx, s.tx, func(ctx context.Context) error {
		if err := s.inventory.Reserve(ctx, ticket.ScheduleID, ticket.Class); err != nil {
			return err
		}

		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}

		return s.events.Publish(ctx, entity.TicketBooked_v1{
			Header:     entity.NewEventHeaderWithIdempotencyKey(ticket.ID),
			TicketID:   ticket.ID,
			UserID:     ticket.UserID,
			ScheduleID: ticket.ScheduleID,
			Class:      ticket.Class,
			BookedAt:   ticket.CreatedAt,
		})
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id":   ticket.ID,
		"schedule_id": ticket.ScheduleID,
		"class":       ticket.Class,
	}).Info("Ticket booked")

	return ticket, nil
}

// Cancel cancels a Booked ticket and gives its seat back. Cancelling a ticket
// that is already Cancelled or Completed is ErrInvalidStateTransition.
func (s *Service) Cancel(ctx context.Context, ticketID string) (cancelled entity.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "booking.Cancel")
	span.SetAttributes(attribute.String("ticket_id", ticketID))
	defer func() {
		metrics.CancellationsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		endSpan(span, err)
	}()

	if err := entity.ValidateID("ticket id", ticketID); err != nil {
		return entity.Ticket{}, err
	}

	err = inTransaction(ctx, s.tx, func(ctx context.Context) error {
		ticket, err := s.tickets.Cancel(ctx, ticketID, s.now().UTC())
		if err != nil {
			return err
		}

		if err := s.inventory.Release(ctx, ticket.ScheduleID, ticket.Class); err != nil {
			return err
		}

		cancelled = ticket

		return s.events.Publish(ctx, entity.TicketCancelled_v1{
			Header:      entity.NewEventHeaderWithIdempotencyKey("cancel-" + ticket.ID),
			TicketID:    ticket.ID,
			UserID:      ticket.UserID,
			ScheduleID:  ticket.ScheduleID,
			Class:       ticket.Class,
			CancelledAt: *ticket.CancelledAt,
		})
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	log.FromContext(ctx).WithField("ticket_id", ticketID).Info("Ticket cancelled")

	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	if err := entity.ValidateID("ticket id", ticketID); err != nil {
		return entity.Ticket{}, err
	}

	ticket, err := s.tickets.Get(ctx, ticketID)
	return ticket, asTransactionFailure(err)
}

// ListUserTickets brings the user's tickets up to date with the clock and
// returns them with their schedule, fare and payment snapshot.
func (s *Service) ListUserTickets(ctx context.Context, userID string) ([]entity.TicketDetails, error) {
	ctx, span := tracer.Start(ctx, "booking.ListUserTickets")
	defer span.End()

	if err := entity.ValidateID("user id", userID); err != nil {
		return nil, err
	}
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.synchronizer.SyncUser(ctx, userID); err != nil {
		return nil, err
	}

	details, err := s.tickets.FindDetailsByUser(ctx, userID)
	if err != nil {
		return nil, asTransactionFailure(err)
	}

	return details, nil
}

func (s *Service) checkUser(ctx context.Context, userID string) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return asTransactionFailure(err)
	}
	if !exists {
		return fmt.Errorf("%w: user %s", entity.ErrNotFound, userID)
	}

	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil && !entity.IsBusinessError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
