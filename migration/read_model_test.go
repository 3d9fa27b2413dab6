package migrations

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raillink/entity"
)

type dataLakeStub []entity.DataLakeEvent

func (d dataLakeStub) GetEvents(ctx context.Context) ([]entity.DataLakeEvent, error) {
	return d, nil
}

type readModelMock struct {
	calls []string
}

func (m *readModelMock) OnTicketBooked(ctx context.Context, event *entity.TicketBooked_v1) error {
	m.calls = append(m.calls, "booked:"+event.TicketID)
	return nil
}

func (m *readModelMock) OnTicketCancelled(ctx context.Context, event *entity.TicketCancelled_v1) error {
	m.calls = append(m.calls, "cancelled:"+event.TicketID)
	return nil
}

func (m *readModelMock) OnTicketCompleted(ctx context.Context, event *entity.TicketCompleted_v1) error {
	m.calls = append(m.calls, "completed:"+event.TicketID)
	return nil
}

func (m *readModelMock) OnPaymentRecorded(ctx context.Context, event *entity.PaymentRecorded_v1) error {
	m.calls = append(m.calls, "payment:"+event.TicketID)
	return nil
}

func (m *readModelMock) OnPaymentStatusUpdated(ctx context.Context, event *entity.PaymentStatusUpdated_v1) error {
	m.calls = append(m.calls, "payment_status:"+string(event.Status))
	return nil
}

func dataLakeEvent(t *testing.T, name string, event any) entity.DataLakeEvent {
	t.Helper()

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	return entity.DataLakeEvent{
		ID:          uuid.NewString(),
		PublishedAt: time.Now(),
		Name:        name,
		Payload:     payload,
	}
}

func TestMigrateReadModel(t *testing.T) {
	ticketID := uuid.NewString()

	dl := dataLakeStub{
		dataLakeEvent(t, "TicketBooked_v1", entity.TicketBooked_v1{Header: entity.NewEventHeader(), TicketID: ticketID}),
		dataLakeEvent(t, "PaymentRecorded_v1", entity.PaymentRecorded_v1{Header: entity.NewEventHeader(), TicketID: ticketID}),
		dataLakeEvent(t, "PaymentStatusUpdated_v1", entity.PaymentStatusUpdated_v1{
			Header: entity.NewEventHeader(),
			Status: entity.PaymentStatusCompleted,
		}),
		dataLakeEvent(t, "TicketPrinted_v0", map[string]string{"ticket_id": ticketID}),
		dataLakeEvent(t, "TicketCancelled_v1", entity.TicketCancelled_v1{Header: entity.NewEventHeader(), TicketID: ticketID}),
	}

	rm := &readModelMock{}

	migrated, err := MigrateReadModel(context.Background(), dl, rm)
	require.NoError(t, err)

	assert.Equal(t, 4, migrated)
	assert.Equal(t, []string{
		"booked:" + ticketID,
		"payment:" + ticketID,
		"payment_status:Completed",
		"cancelled:" + ticketID,
	}, rm.calls)
}

func TestMigrateReadModel_malformed_payload(t *testing.T) {
	dl := dataLakeStub{
		{ID: uuid.NewString(), Name: "TicketCompleted_v1", Payload: []byte(`{"ticket_id":`)},
	}

	_, err := MigrateReadModel(context.Background(), dl, &readModelMock{})
	assert.Error(t, err)
}
