// Package booking keeps seat inventory, tickets and payments consistent.
//
// Every state change runs inside a single storage transaction: a reservation
// and its ticket, a cancellation and its released seat, or a synchronizer pass
// and its completed tickets commit together or not at all. Domain events are
// published through the same transaction.
package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"raillink/entity"
)

var tracer = otel.Tracer("raillink/booking")

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Inventory interface {
	Reserve(ctx context.Context, scheduleID string, class entity.FareClass) error
	Release(ctx context.Context, scheduleID string, class entity.FareClass) error
}

type TicketLedger interface {
	Create(ctx context.Context, ticket entity.Ticket) error
	Get(ctx context.Context, ticketID string) (entity.Ticket, error)
	Cancel(ctx context.Context, ticketID string, cancelledAt time.Time) (entity.Ticket, error)
	CompleteDeparted(ctx context.Context, now time.Time, userID string) ([]entity.Ticket, error)
	FindDetailsByUser(ctx context.Context, userID string) ([]entity.TicketDetails, error)
}

type PaymentLedger interface {
	Create(ctx context.Context, payment entity.Payment) error
	Get(ctx context.Context, paymentID string) (entity.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, status entity.PaymentStatus, at time.Time) (entity.Payment, error)
}

type ScheduleLookup interface {
	Get(ctx context.Context, scheduleID string) (entity.Schedule, error)
}

type UserLookup interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// EventPublisher publishes within the transaction carried by ctx.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// inTransaction runs fn atomically. Business outcomes are returned as they
// are; anything else means nothing was committed and is reported as
// ErrTransactionFailure.
func inTransaction(ctx context.Context, tx Transactor, fn func(ctx context.Context) error) error {
	err := tx.WithinTransaction(ctx, fn)
	if err == nil {
		return nil
	}

	return asTransactionFailure(err)
}

func asTransactionFailure(err error) error {
	if err == nil || entity.IsBusinessError(err) {
		return err
	}

	return fmt.Errorf("%w: %w", entity.ErrTransactionFailure, err)
}
