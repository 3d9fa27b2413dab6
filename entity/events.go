package entity

import (
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type TicketBooked_v1 struct {
	Header EventHeader `json:"header"`

	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	ScheduleID string    `json:"schedule_id"`
	Class      FareClass `json:"class"`
	BookedAt   time.Time `json:"booked_at"`
}

func (e TicketBooked_v1) IsInternal() bool {
	return false
}

type TicketCancelled_v1 struct {
	Header EventHeader `json:"header"`

	TicketID    string    `json:"ticket_id"`
	UserID      string    `json:"user_id"`
	ScheduleID  string    `json:"schedule_id"`
	Class       FareClass `json:"class"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e TicketCancelled_v1) IsInternal() bool {
	return false
}

type TicketCompleted_v1 struct {
	Header EventHeader `json:"header"`

	TicketID    string    `json:"ticket_id"`
	UserID      string    `json:"user_id"`
	ScheduleID  string    `json:"schedule_id"`
	Class       FareClass `json:"class"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e TicketCompleted_v1) IsInternal() bool {
	return false
}

type PaymentRecorded_v1 struct {
	Header EventHeader `json:"header"`

	PaymentID string        `json:"payment_id"`
	TicketID  string        `json:"ticket_id"`
	UserID    string        `json:"user_id"`
	Amount    Money         `json:"amount"`
	Status    PaymentStatus `json:"status"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

func (e PaymentRecorded_v1) IsInternal() bool {
	return false
}

type PaymentStatusUpdated_v1 struct {
	Header EventHeader `json:"header"`

	PaymentID string        `json:"payment_id"`
	TicketID  string        `json:"ticket_id"`
	Status    PaymentStatus `json:"status"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

func (e PaymentStatusUpdated_v1) IsInternal() bool {
	return false
}
