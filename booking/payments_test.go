package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raillink/entity"
)

func TestPayments_Record_defaults_to_fare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassEconomy)

	payment, err := f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusPending, payment.Status)
	assert.Equal(t, entity.Money{Amount: "25.00", Currency: "PLN"}, payment.Amount)
	assert.Equal(t, f.user.ID, payment.UserID)
	assert.Nil(t, payment.PaidAt)

	stored, err := f.payments.Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment, stored)

	recorded, ok := f.store.Events()[len(f.store.Events())-1].(entity.PaymentRecorded_v1)
	require.True(t, ok)
	assert.Equal(t, payment.ID, recorded.PaymentID)
}

func TestPayments_Record_completed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassVIP)

	payment, err := f.payments.Record(ctx, entity.RecordPayment{
		TicketID: ticket.ID,
		Amount:   entity.Money{Amount: "120.00", Currency: "EUR"},
		Status:   entity.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.Money{Amount: "120.00", Currency: "EUR"}, payment.Amount)
	require.NotNil(t, payment.PaidAt)
}

func TestPayments_Record_does_not_touch_ticket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassEconomy)

	_, err := f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID, Status: entity.PaymentStatusCompleted})
	require.NoError(t, err)

	stored, err := f.service.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusBooked, stored.Status)
	assert.Equal(t, 2, f.seatsLeft(t, schedule.ID, entity.FareClassEconomy))

	// a cancelled ticket keeps its payment as is
	_, err = f.service.Cancel(ctx, ticket.ID)
	require.NoError(t, err)

	details, err := f.service.ListUserTickets(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.NotNil(t, details[0].Payment)
	assert.Equal(t, entity.PaymentStatusCompleted, details[0].Payment.Status)
}

func TestPayments_Record_rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassEconomy)

	testCases := []struct {
		Name        string
		Command     entity.RecordPayment
		ExpectedErr error
	}{
		{
			Name:        "failed_status",
			Command:     entity.RecordPayment{TicketID: ticket.ID, Status: entity.PaymentStatusFailed},
			ExpectedErr: entity.ErrInvalidStatus,
		},
		{
			Name:        "unknown_status",
			Command:     entity.RecordPayment{TicketID: ticket.ID, Status: "Refunded"},
			ExpectedErr: entity.ErrInvalidStatus,
		},
		{
			Name:        "malformed_ticket_id",
			Command:     entity.RecordPayment{TicketID: "ticket-1"},
			ExpectedErr: entity.ErrValidation,
		},
		{
			Name:        "unknown_ticket",
			Command:     entity.RecordPayment{TicketID: uuid.NewString()},
			ExpectedErr: entity.ErrNotFound,
		},
		{
			Name:        "malformed_amount",
			Command:     entity.RecordPayment{TicketID: ticket.ID, Amount: entity.Money{Amount: "ten", Currency: "PLN"}},
			ExpectedErr: entity.ErrValidation,
		},
	}
	for _, amount := range []string{"NaN", "Inf", "-Inf", "1e20", "2.5E1", "0.0001", "12.345", "10000000000", "-1.00"} {
		testCases = append(testCases, struct {
			Name        string
			Command     entity.RecordPayment
			ExpectedErr error
		}{
			Name:        "amount_" + amount,
			Command:     entity.RecordPayment{TicketID: ticket.ID, Amount: entity.Money{Amount: amount, Currency: "PLN"}},
			ExpectedErr: entity.ErrValidation,
		})
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			eventsBefore := len(f.store.Events())

			_, err := f.payments.Record(ctx, tc.Command)
			assert.ErrorIs(t, err, tc.ExpectedErr)
			assert.Len(t, f.store.Events(), eventsBefore)
		})
	}
}

func TestPayments_one_active_payment_per_ticket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassEconomy)

	first, err := f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID})
	require.NoError(t, err)

	eventsBefore := len(f.store.Events())

	_, err = f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID})
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.Len(t, f.store.Events(), eventsBefore, "rolled back payment must not publish")

	_, err = f.payments.UpdateStatus(ctx, first.ID, string(entity.PaymentStatusFailed))
	require.NoError(t, err)

	second, err := f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID})
	require.NoError(t, err)

	// reviving the failed attempt would give the ticket two active payments
	_, err = f.payments.UpdateStatus(ctx, first.ID, string(entity.PaymentStatusPending))
	assert.ErrorIs(t, err, entity.ErrConflict)

	stored, err := f.payments.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, stored.Status)
}

func TestPayments_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassBusiness)

	payment, err := f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID})
	require.NoError(t, err)

	paidAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.payments.now = func() time.Time { return paidAt }

	completed, err := f.payments.UpdateStatus(ctx, payment.ID, string(entity.PaymentStatusCompleted))
	require.NoError(t, err)
	require.NotNil(t, completed.PaidAt)
	assert.Equal(t, paidAt, *completed.PaidAt)

	f.payments.now = func() time.Time { return paidAt.Add(time.Hour) }

	again, err := f.payments.UpdateStatus(ctx, payment.ID, string(entity.PaymentStatusCompleted))
	require.NoError(t, err)
	require.NotNil(t, again.PaidAt)
	assert.Equal(t, paidAt, *again.PaidAt, "paid_at is kept while the payment stays Completed")

	failed, err := f.payments.UpdateStatus(ctx, payment.ID, string(entity.PaymentStatusFailed))
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, failed.Status)
	assert.Nil(t, failed.PaidAt)

	updated, ok := f.store.Events()[len(f.store.Events())-1].(entity.PaymentStatusUpdated_v1)
	require.True(t, ok)
	assert.Equal(t, entity.PaymentStatusFailed, updated.Status)

	stored, err := f.service.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusBooked, stored.Status)
}

func TestPayments_UpdateStatus_rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schedule := f.addSchedule(t, time.Now().Add(time.Hour), 3)
	ticket := f.book(t, schedule, entity.FareClassEconomy)

	payment, err := f.payments.Record(ctx, entity.RecordPayment{TicketID: ticket.ID})
	require.NoError(t, err)

	_, err = f.payments.UpdateStatus(ctx, payment.ID, "Refunded")
	assert.ErrorIs(t, err, entity.ErrInvalidStatus)

	_, err = f.payments.UpdateStatus(ctx, payment.ID, "")
	assert.ErrorIs(t, err, entity.ErrInvalidStatus)

	_, err = f.payments.UpdateStatus(ctx, uuid.NewString(), string(entity.PaymentStatusCompleted))
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = f.payments.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
