package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketStatusBooked    TicketStatus = "Booked"
	TicketStatusCancelled TicketStatus = "Cancelled"
	TicketStatusCompleted TicketStatus = "Completed"
)

// Terminal reports whether no further transition may leave this status.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCancelled || s == TicketStatusCompleted
}

type Ticket struct {
	ID          string       `json:"ticket_id" db:"ticket_id"`
	UserID      string       `json:"user_id" db:"user_id"`
	ScheduleID  string       `json:"schedule_id" db:"schedule_id"`
	Class       FareClass    `json:"class" db:"class"`
	Status      TicketStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	CancelledAt *time.Time   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

type BookTicket struct {
	UserID     string    `json:"user_id"`
	ScheduleID string    `json:"schedule_id"`
	Class      FareClass `json:"class"`
}

func (b BookTicket) Validate() error {
	if err := ValidateID("user id", b.UserID); err != nil {
		return err
	}
	if err := ValidateID("schedule id", b.ScheduleID); err != nil {
		return err
	}

	return b.Class.Validate()
}

// TicketDetails is a ticket joined with its schedule, fare and latest payment.
type TicketDetails struct {
	Ticket

	DepartureTime      time.Time      `json:"departure_time" db:"departure_time"`
	ArrivalTime        time.Time      `json:"arrival_time" db:"arrival_time"`
	ScheduleStatus     ScheduleStatus `json:"schedule_status" db:"schedule_status"`
	TrainID            string         `json:"train_id" db:"train_id"`
	DepartureStationID string         `json:"departure_station_id" db:"departure_station_id"`
	ArrivalStationID   string         `json:"arrival_station_id" db:"arrival_station_id"`
	Price              Money          `json:"price"`

	Payment *Payment `json:"payment,omitempty"`
}

// ValidateID checks that id is a UUID. name is used in the error message.
func ValidateID(name, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s must be set", ErrValidation, name)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s %q is not a valid id", ErrValidation, name, id)
	}

	return nil
}
