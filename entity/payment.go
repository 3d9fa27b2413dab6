package entity

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return PaymentStatus(s), nil
	default:
		return "", fmt.Errorf("%w: payment status must be Pending, Completed or Failed, got %q", ErrInvalidStatus, s)
	}
}

// Active payments block another payment from being recorded for the same ticket.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted
}

type Payment struct {
	ID        string        `json:"payment_id" db:"payment_id"`
	TicketID  string        `json:"ticket_id" db:"ticket_id"`
	UserID    string        `json:"user_id" db:"user_id"`
	Amount    Money         `json:"amount"`
	Status    PaymentStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	PaidAt    *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
}

type RecordPayment struct {
	TicketID string `json:"ticket_id"`
	// Amount defaults to the fare price of the ticket when empty.
	Amount Money `json:"amount"`
	// Status is Pending when empty. Only Pending and Completed are accepted.
	Status PaymentStatus `json:"status"`
}
