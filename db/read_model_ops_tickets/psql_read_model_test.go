package read_model_ops_tickets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raillink/db"
	"raillink/entity"
)

func TestOpsTicketReadModel_events_out_of_order(t *testing.T) {
	ctx := context.Background()
	rm := NewOpsTicketReadModel(db.SetupPostgres(t))

	ticketID := uuid.NewString()
	userID := uuid.NewString()
	paymentID := uuid.NewString()
	bookedAt := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	cancelledAt := time.Now().UTC().Truncate(time.Second)

	err := rm.OnTicketCancelled(ctx, &entity.TicketCancelled_v1{
		Header:      entity.NewEventHeader(),
		TicketID:    ticketID,
		UserID:      userID,
		ScheduleID:  "schedule",
		Class:       entity.FareClassVIP,
		CancelledAt: cancelledAt,
	})
	require.NoError(t, err)

	err = rm.OnPaymentRecorded(ctx, &entity.PaymentRecorded_v1{
		Header:    entity.NewEventHeader(),
		PaymentID: paymentID,
		TicketID:  ticketID,
		UserID:    userID,
		Amount:    entity.Money{Amount: "10.00", Currency: "EUR"},
		Status:    entity.PaymentStatusPending,
	})
	require.NoError(t, err)

	err = rm.OnTicketBooked(ctx, &entity.TicketBooked_v1{
		Header:     entity.NewEventHeader(),
		TicketID:   ticketID,
		UserID:     userID,
		ScheduleID: "schedule",
		Class:      entity.FareClassVIP,
		BookedAt:   bookedAt,
	})
	require.NoError(t, err)

	paidAt := cancelledAt.Add(time.Minute)
	err = rm.OnPaymentStatusUpdated(ctx, &entity.PaymentStatusUpdated_v1{
		Header:    entity.NewEventHeader(),
		PaymentID: paymentID,
		TicketID:  ticketID,
		Status:    entity.PaymentStatusCompleted,
		PaidAt:    &paidAt,
	})
	require.NoError(t, err)

	ticket, err := rm.TicketReadModel(ctx, ticketID)
	require.NoError(t, err)

	assert.Equal(t, entity.TicketStatusCancelled, ticket.Status, "booking event must not revert cancellation")
	assert.Equal(t, userID, ticket.UserID)
	assert.True(t, bookedAt.Equal(ticket.BookedAt))
	assert.True(t, cancelledAt.Equal(ticket.CancelledAt))
	require.Contains(t, ticket.Payments, paymentID)
	assert.Equal(t, entity.PaymentStatusCompleted, ticket.Payments[paymentID].Status)
	assert.True(t, paidAt.Equal(ticket.Payments[paymentID].PaidAt))
	assert.Equal(t, "10.00", ticket.Payments[paymentID].Amount.Amount)

	cancelled, err := rm.AllTickets(ctx, entity.TicketStatusCancelled)
	require.NoError(t, err)
	assert.Contains(t, opsTicketIDs(cancelled), ticketID)

	booked, err := rm.AllTickets(ctx, entity.TicketStatusBooked)
	require.NoError(t, err)
	assert.NotContains(t, opsTicketIDs(booked), ticketID)

	_, err = rm.TicketReadModel(ctx, uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestOpsTicketReadModel_replay_is_idempotent(t *testing.T) {
	ctx := context.Background()
	rm := NewOpsTicketReadModel(db.SetupPostgres(t))

	event := &entity.TicketCompleted_v1{
		Header:      entity.NewEventHeader(),
		TicketID:    uuid.NewString(),
		UserID:      uuid.NewString(),
		ScheduleID:  "schedule",
		Class:       entity.FareClassEconomy,
		CompletedAt: time.Now().UTC().Truncate(time.Second),
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, rm.OnTicketCompleted(ctx, event))
	}

	ticket, err := rm.TicketReadModel(ctx, event.TicketID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusCompleted, ticket.Status)
	assert.Empty(t, ticket.Payments)
}

func opsTicketIDs(tickets []entity.OpsTicket) []string {
	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		ids = append(ids, ticket.TicketID)
	}
	return ids
}
