package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"raillink/entity"
)

// Payments records payment attempts against tickets. Payment state never
// changes seat inventory or ticket status.
type Payments struct {
	tx        Transactor
	tickets   TicketLedger
	schedules ScheduleLookup
	payments  PaymentLedger
	events    EventPublisher

	now func() time.Time
}

func NewPayments(
	tx Transactor,
	tickets TicketLedger,
	schedules ScheduleLookup,
	payments PaymentLedger,
	events EventPublisher,
) *Payments {
	if tx == nil {
		panic("missing tx")
	}
	if tickets == nil {
		panic("missing tickets")
	}
	if schedules == nil {
		panic("missing schedules")
	}
	if payments == nil {
		panic("missing payments")
	}
	if events == nil {
		panic("missing events")
	}

	return &Payments{
		tx:        tx,
		tickets:   tickets,
		schedules: schedules,
		payments:  payments,
		events:    events,
		now:       time.Now,
	}
}

// Record creates a Pending or Completed payment for an existing ticket. An
// empty amount or currency is taken from the ticket's fare.
func (p *Payments) Record(ctx context.Context, cmd entity.RecordPayment) (entity.Payment, error) {
	ctx, span := tracer.Start(ctx, "booking.RecordPayment")
	var err error
	defer func() { endSpan(span, err) }()

	if err = entity.ValidateID("ticket id", cmd.TicketID); err != nil {
		return entity.Payment{}, err
	}
	if cmd.Amount.Amount != "" {
		if err = cmd.Amount.ValidateAmount(); err != nil {
			return entity.Payment{}, err
		}
	}

	status := cmd.Status
	if status == "" {
		status = entity.PaymentStatusPending
	}
	if status, err = entity.ParsePaymentStatus(string(status)); err != nil {
		return entity.Payment{}, err
	}
	if status == entity.PaymentStatusFailed {
		err = fmt.Errorf("%w: a payment is recorded as %s or %s", entity.ErrInvalidStatus, entity.PaymentStatusPending, entity.PaymentStatusCompleted)
		return entity.Payment{}, err
	}

	var payment entity.Payment
	err = inTransaction(ctx, p.tx, func(ctx context.Context) error {
		ticket, err := p.tickets.Get(ctx, cmd.TicketID)
		if err != nil {
			return err
		}

		amount, err := p.resolveAmount(ctx, ticket, cmd.Amount)
		if err != nil {
			return err
		}

		now := p.now().UTC()
		payment = entity.Payment{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			UserID:    ticket.UserID,
			Amount:    amount,
			Status:    status,
			CreatedAt: now,
		}
		if status == entity.PaymentStatusCompleted {
			payment.PaidAt = &now
		}

		if err := p.payments.Create(ctx, payment); err != nil {
			return err
		}

		return p.events.Publish(ctx, entity.PaymentRecorded_v1{
			Header:    entity.NewEventHeaderWithIdempotencyKey(payment.ID),
			PaymentID: payment.ID,
			TicketID:  payment.TicketID,
			UserID:    payment.UserID,
			Amount:    payment.Amount,
			Status:    payment.Status,
			PaidAt:    payment.PaidAt,
		})
	})
	if err != nil {
		return entity.Payment{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"ticket_id":  payment.TicketID,
		"status":     payment.Status,
	}).Info("Payment recorded")

	return payment, nil
}

func (p *Payments) resolveAmount(ctx context.Context, ticket entity.Ticket, amount entity.Money) (entity.Money, error) {
	if amount.Amount == "" || amount.Currency == "" {
		schedule, err := p.schedules.Get(ctx, ticket.ScheduleID)
		if err != nil {
			return entity.Money{}, err
		}

		fare := schedule.Seats[ticket.Class].Price
		if amount.Amount == "" {
			amount.Amount = fare.Amount
		}
		if amount.Currency == "" {
			amount.Currency = fare.Currency
		}
	}

	if err := amount.Validate(); err != nil {
		return entity.Money{}, err
	}

	return amount, nil
}

// UpdateStatus moves a payment to Pending, Completed or Failed.
func (p *Payments) UpdateStatus(ctx context.Context, paymentID string, status string) (entity.Payment, error) {
	ctx, span := tracer.Start(ctx, "booking.UpdatePaymentStatus")
	var err error
	defer func() { endSpan(span, err) }()

	parsed, err := entity.ParsePaymentStatus(status)
	if err != nil {
		return entity.Payment{}, err
	}
	if err = entity.ValidateID("payment id", paymentID); err != nil {
		return entity.Payment{}, err
	}

	var payment entity.Payment
	err = inTransaction(ctx, p.tx, func(ctx context.Context) error {
		var err error
		payment, err = p.payments.UpdateStatus(ctx, paymentID, parsed, p.now().UTC())
		if err != nil {
			return err
		}

		return p.events.Publish(ctx, entity.PaymentStatusUpdated_v1{
			Header:    entity.NewEventHeader(),
			PaymentID: payment.ID,
			TicketID:  payment.TicketID,
			Status:    payment.Status,
			PaidAt:    payment.PaidAt,
		})
	})
	if err != nil {
		return entity.Payment{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"status":     payment.Status,
	}).Info("Payment status updated")

	return payment, nil
}

func (p *Payments) Get(ctx context.Context, paymentID string) (entity.Payment, error) {
	if err := entity.ValidateID("payment id", paymentID); err != nil {
		return entity.Payment{}, err
	}

	payment, err := p.payments.Get(ctx, paymentID)
	return payment, asTransactionFailure(err)
}
