package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ScheduleStatus string

const (
	ScheduleStatusOnTime    ScheduleStatus = "OnTime"
	ScheduleStatusDelayed   ScheduleStatus = "Delayed"
	ScheduleStatusCancelled ScheduleStatus = "Cancelled"
)

// ParseScheduleStatus accepts both "OnTime" and the display form "On Time".
func ParseScheduleStatus(s string) (ScheduleStatus, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "ontime":
		return ScheduleStatusOnTime, nil
	case "delayed":
		return ScheduleStatusDelayed, nil
	case "cancelled", "canceled":
		return ScheduleStatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown schedule status %q", ErrValidation, s)
	}
}

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// maxAmount bounds amounts to what a NUMERIC(12, 2) column holds.
var maxAmount = decimal.New(1, 10)

func (m Money) Validate() error {
	if err := m.ValidateAmount(); err != nil {
		return err
	}
	if len(m.Currency) != 3 {
		return fmt.Errorf("%w: currency %q must be a 3-letter code", ErrValidation, m.Currency)
	}

	return nil
}

// ValidateAmount accepts plain decimals with at most 10 integer digits and 2
// decimal places.
func (m Money) ValidateAmount() error {
	if strings.ContainsAny(m.Amount, "eE") {
		return fmt.Errorf("%w: amount %q must be a plain decimal", ErrValidation, m.Amount)
	}

	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount %q is not a number", ErrValidation, m.Amount)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: amount %q has more than 2 decimal places", ErrValidation, m.Amount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: amount %q is too large", ErrValidation, m.Amount)
	}

	return nil
}

// SeatInventory is the seat pool of a single fare class on a schedule.
type SeatInventory struct {
	Class     FareClass `json:"class" db:"class"`
	Price     Money     `json:"price"`
	Capacity  int       `json:"capacity" db:"capacity"`
	SeatsLeft int       `json:"seats_left" db:"seats_left"`
}

type Schedule struct {
	ID                 string         `json:"schedule_id" db:"schedule_id"`
	TrainID            string         `json:"train_id" db:"train_id"`
	DepartureStationID string         `json:"departure_station_id" db:"departure_station_id"`
	ArrivalStationID   string         `json:"arrival_station_id" db:"arrival_station_id"`
	DepartureTime      time.Time      `json:"departure_time" db:"departure_time"`
	ArrivalTime        time.Time      `json:"arrival_time" db:"arrival_time"`
	Status             ScheduleStatus `json:"status" db:"status"`

	Seats map[FareClass]SeatInventory `json:"seats" db:"-"`
}

// Departed reports whether the departure timestamp is at or before now.
func (s Schedule) Departed(now time.Time) bool {
	return !s.DepartureTime.After(now)
}

func (s Schedule) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: schedule id must be set", ErrValidation)
	}
	if s.TrainID == "" {
		return fmt.Errorf("%w: train id must be set", ErrValidation)
	}
	if s.DepartureStationID == "" || s.ArrivalStationID == "" {
		return fmt.Errorf("%w: departure and arrival stations must be set", ErrValidation)
	}
	if s.DepartureTime.IsZero() || s.ArrivalTime.IsZero() {
		return fmt.Errorf("%w: departure and arrival times must be set", ErrValidation)
	}
	if !s.ArrivalTime.After(s.DepartureTime) {
		return fmt.Errorf("%w: arrival must be after departure", ErrValidation)
	}
	if _, err := ParseScheduleStatus(string(s.Status)); err != nil {
		return err
	}

	for _, class := range FareClasses {
		seats, ok := s.Seats[class]
		if !ok {
			return fmt.Errorf("%w: missing seat inventory for %s", ErrValidation, class)
		}
		if seats.Class != class {
			return fmt.Errorf("%w: seat inventory for %s is labelled %s", ErrValidation, class, seats.Class)
		}
		if seats.Capacity < 0 {
			return fmt.Errorf("%w: %s capacity must not be negative", ErrValidation, class)
		}
		if seats.SeatsLeft < 0 || seats.SeatsLeft > seats.Capacity {
			return fmt.Errorf("%w: %s seats left must be within [0, capacity]", ErrValidation, class)
		}
		if err := seats.Price.Validate(); err != nil {
			return fmt.Errorf("%s price: %w", class, err)
		}
	}
	if len(s.Seats) != len(FareClasses) {
		return fmt.Errorf("%w: unexpected fare classes in seat inventory", ErrValidation)
	}

	return nil
}

// Equal compares amounts by value, so "20" equals "20.00".
func (m Money) Equal(other Money) bool {
	if m.Currency != other.Currency {
		return false
	}

	a, errA := decimal.NewFromString(m.Amount)
	b, errB := decimal.NewFromString(other.Amount)
	if errA != nil || errB != nil {
		return m.Amount == other.Amount
	}

	return a.Equal(b)
}

// Equivalent reports whether other describes the same service: train,
// stations, and per-class capacity and price. Status, timetable and seats
// left change during a schedule's life and are not compared.
func (s Schedule) Equivalent(other Schedule) bool {
	if s.ID != other.ID ||
		s.TrainID != other.TrainID ||
		s.DepartureStationID != other.DepartureStationID ||
		s.ArrivalStationID != other.ArrivalStationID ||
		len(s.Seats) != len(other.Seats) {
		return false
	}

	for class, seats := range s.Seats {
		otherSeats, ok := other.Seats[class]
		if !ok || seats.Capacity != otherSeats.Capacity || !seats.Price.Equal(otherSeats.Price) {
			return false
		}
	}

	return true
}

// ScheduleQuery filters schedules. Empty fields match everything; Date
// matches departures on that UTC calendar day.
type ScheduleQuery struct {
	DepartureStationID string
	ArrivalStationID   string
	Date               time.Time
}

// ParseScheduleDate parses a YYYY-MM-DD date as a UTC day.
func ParseScheduleDate(s string) (time.Time, error) {
	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, s)
	}

	return date.UTC(), nil
}

// Matches applies the query in memory, the way the database does.
func (q ScheduleQuery) Matches(schedule Schedule) bool {
	if q.DepartureStationID != "" && q.DepartureStationID != schedule.DepartureStationID {
		return false
	}
	if q.ArrivalStationID != "" && q.ArrivalStationID != schedule.ArrivalStationID {
		return false
	}
	if !q.Date.IsZero() {
		departure := schedule.DepartureTime.UTC()
		if departure.Before(q.Date) || !departure.Before(q.Date.AddDate(0, 0, 1)) {
			return false
		}
	}

	return true
}
