package entity

import (
	"time"
)

// OpsTicket is the operator view of a ticket, built from domain events.
type OpsTicket struct {
	TicketID   string       `json:"ticket_id"`
	UserID     string       `json:"user_id"`
	ScheduleID string       `json:"schedule_id"`
	Class      FareClass    `json:"class"`
	Status     TicketStatus `json:"status"`

	BookedAt    time.Time `json:"booked_at"`
	CancelledAt time.Time `json:"cancelled_at"`
	CompletedAt time.Time `json:"completed_at"`

	Payments map[string]OpsPayment `json:"payments"`

	LastUpdate time.Time `json:"last_update"`
}

type OpsPayment struct {
	Amount     Money         `json:"amount"`
	Status     PaymentStatus `json:"status"`
	RecordedAt time.Time     `json:"recorded_at"`
	PaidAt     time.Time     `json:"paid_at"`
}
