// Package memory is an in-process implementation of the storage ports. A
// transaction holds the store lock for its whole duration and restores a
// snapshot on rollback, so it behaves like a serializable database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"raillink/entity"
)

type txKey struct{}

type state struct {
	users     map[string]entity.User
	schedules map[string]entity.Schedule
	tickets   map[string]entity.Ticket
	payments  map[string]entity.Payment
	events    []any
}

type Store struct {
	mu sync.Mutex
	state
}

func NewStore() *Store {
	return &Store{
		state: state{
			users:     map[string]entity.User{},
			schedules: map[string]entity.Schedule{},
			tickets:   map[string]entity.Ticket{},
			payments:  map[string]entity.Payment{},
		},
	}
}

type store = Store

// Views over the store, one per storage port.
type (
	Users     struct{ *store }
	Schedules struct{ *store }
	Inventory struct{ *store }
	Tickets   struct{ *store }
	Payments  struct{ *store }
)

func (s *Store) Users() Users         { return Users{s} }
func (s *Store) Schedules() Schedules { return Schedules{s} }
func (s *Store) Inventory() Inventory { return Inventory{s} }
func (s *Store) Tickets() Tickets     { return Tickets{s} }
func (s *Store) Payments() Payments   { return Payments{s} }

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store lock unless ctx already runs inside one of its
// transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}

	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

func (st state) clone() state {
	c := state{
		users:     make(map[string]entity.User, len(st.users)),
		schedules: make(map[string]entity.Schedule, len(st.schedules)),
		tickets:   make(map[string]entity.Ticket, len(st.tickets)),
		payments:  make(map[string]entity.Payment, len(st.payments)),
		events:    append([]any(nil), st.events...),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.schedules {
		c.schedules[k] = cloneSchedule(v)
	}
	for k, v := range st.tickets {
		c.tickets[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}

	return c
}

func cloneSchedule(schedule entity.Schedule) entity.Schedule {
	seats := make(map[entity.FareClass]entity.SeatInventory, len(schedule.Seats))
	for class, inventory := range schedule.Seats {
		seats[class] = inventory
	}
	schedule.Seats = seats

	return schedule
}

// Users

func (s Users) Store(ctx context.Context, user entity.User) error {
	defer s.lock(ctx)()

	if _, ok := s.users[user.ID]; !ok {
		s.users[user.ID] = user
	}

	return nil
}

func (s Users) Exists(ctx context.Context, userID string) (bool, error) {
	defer s.lock(ctx)()

	_, ok := s.users[userID]
	return ok, nil
}

// Schedules

func (s Schedules) Store(ctx context.Context, schedule entity.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	defer s.lock(ctx)()

	stored, ok := s.schedules[schedule.ID]
	if !ok {
		s.schedules[schedule.ID] = cloneSchedule(schedule)
		return nil
	}
	if !stored.Equivalent(schedule) {
		return fmt.Errorf("%w: schedule %s already exists with different details", entity.ErrConflict, schedule.ID)
	}

	return nil
}

func (s Schedules) Search(ctx context.Context, query entity.ScheduleQuery) ([]entity.Schedule, error) {
	defer s.lock(ctx)()

	found := []entity.Schedule{}
	for _, schedule := range s.schedules {
		if query.Matches(schedule) {
			found = append(found, cloneSchedule(schedule))
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].DepartureTime.Equal(found[j].DepartureTime) {
			return found[i].DepartureTime.Before(found[j].DepartureTime)
		}
		return found[i].ID < found[j].ID
	})

	return found, nil
}

func (s Schedules) Get(ctx context.Context, scheduleID string) (entity.Schedule, error) {
	defer s.lock(ctx)()

	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return entity.Schedule{}, fmt.Errorf("%w: schedule %s", entity.ErrNotFound, scheduleID)
	}

	return cloneSchedule(schedule), nil
}

func (s Schedules) UpdateStatus(
	ctx context.Context,
	scheduleID string,
	status entity.ScheduleStatus,
	departureTime time.Time,
	arrivalTime time.Time,
) error {
	if _, err := entity.ParseScheduleStatus(string(status)); err != nil {
		return err
	}

	defer s.lock(ctx)()

	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("%w: schedule %s", entity.ErrNotFound, scheduleID)
	}

	schedule.Status = status
	if !departureTime.IsZero() {
		schedule.DepartureTime = departureTime
	}
	if !arrivalTime.IsZero() {
		schedule.ArrivalTime = arrivalTime
	}
	s.schedules[scheduleID] = schedule

	return nil
}

// Inventory

func (s Inventory) Reserve(ctx context.Context, scheduleID string, class entity.FareClass) error {
	if err := class.Validate(); err != nil {
		return err
	}

	defer s.lock(ctx)()

	schedule, ok := s.schedules[scheduleID]
	if ok && schedule.Status == entity.ScheduleStatusCancelled {
		return fmt.Errorf("%w: schedule %s is cancelled", entity.ErrValidation, scheduleID)
	}

	seats := schedule.Seats[class]
	if !ok || seats.SeatsLeft <= 0 {
		return fmt.Errorf("%w: no %s seats left on schedule %s", entity.ErrSeatUnavailable, class, scheduleID)
	}

	seats.SeatsLeft--
	schedule.Seats[class] = seats

	return nil
}

func (s Inventory) Release(ctx context.Context, scheduleID string, class entity.FareClass) error {
	if err := class.Validate(); err != nil {
		return err
	}

	defer s.lock(ctx)()

	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("%w: no %s seat inventory for schedule %s", entity.ErrNotFound, class, scheduleID)
	}

	seats := schedule.Seats[class]
	if seats.SeatsLeft < seats.Capacity {
		seats.SeatsLeft++
	}
	schedule.Seats[class] = seats

	return nil
}

func (s Inventory) Get(ctx context.Context, scheduleID string, class entity.FareClass) (entity.SeatInventory, error) {
	defer s.lock(ctx)()

	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return entity.SeatInventory{}, fmt.Errorf("%w: seat inventory %s/%s", entity.ErrNotFound, scheduleID, class)
	}

	return schedule.Seats[class], nil
}

// Tickets

func (s Tickets) Create(ctx context.Context, ticket entity.Ticket) error {
	if ticket.Status != entity.TicketStatusBooked {
		return fmt.Errorf("%w: ticket must be created as %s, got %s", entity.ErrValidation, entity.TicketStatusBooked, ticket.Status)
	}

	defer s.lock(ctx)()

	if _, ok := s.tickets[ticket.ID]; ok {
		return fmt.Errorf("%w: ticket %s already exists", entity.ErrConflict, ticket.ID)
	}
	if _, ok := s.users[ticket.UserID]; !ok {
		return fmt.Errorf("could not insert ticket: user %s does not exist", ticket.UserID)
	}
	if _, ok := s.schedules[ticket.ScheduleID]; !ok {
		return fmt.Errorf("could not insert ticket: schedule %s does not exist", ticket.ScheduleID)
	}

	s.tickets[ticket.ID] = ticket

	return nil
}

func (s Tickets) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	defer s.lock(ctx)()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}

	return ticket, nil
}

func (s Tickets) Cancel(ctx context.Context, ticketID string, cancelledAt time.Time) (entity.Ticket, error) {
	defer s.lock(ctx)()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}
	if ticket.Status != entity.TicketStatusBooked {
		return entity.Ticket{}, fmt.Errorf(
			"%w: ticket %s is %s, only %s tickets can be cancelled",
			entity.ErrInvalidStateTransition, ticketID, ticket.Status, entity.TicketStatusBooked,
		)
	}

	ticket.Status = entity.TicketStatusCancelled
	ticket.CancelledAt = &cancelledAt
	s.tickets[ticketID] = ticket

	return ticket, nil
}

func (s Tickets) CompleteDeparted(ctx context.Context, now time.Time, userID string) ([]entity.Ticket, error) {
	defer s.lock(ctx)()

	var completed []entity.Ticket
	for id, ticket := range s.tickets {
		if ticket.Status != entity.TicketStatusBooked {
			continue
		}
		if userID != "" && ticket.UserID != userID {
			continue
		}
		if !s.schedules[ticket.ScheduleID].Departed(now) {
			continue
		}

		completedAt := now
		ticket.Status = entity.TicketStatusCompleted
		ticket.CompletedAt = &completedAt
		s.tickets[id] = ticket

		completed = append(completed, ticket)
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.Before(completed[j].CreatedAt)
	})

	return completed, nil
}

func (s Tickets) FindDetailsByUser(ctx context.Context, userID string) ([]entity.TicketDetails, error) {
	defer s.lock(ctx)()

	details := []entity.TicketDetails{}
	for _, ticket := range s.tickets {
		if ticket.UserID != userID {
			continue
		}

		schedule := s.schedules[ticket.ScheduleID]
		d := entity.TicketDetails{
			Ticket:             ticket,
			DepartureTime:      schedule.DepartureTime,
			ArrivalTime:        schedule.ArrivalTime,
			ScheduleStatus:     schedule.Status,
			TrainID:            schedule.TrainID,
			DepartureStationID: schedule.DepartureStationID,
			ArrivalStationID:   schedule.ArrivalStationID,
			Price:              schedule.Seats[ticket.Class].Price,
		}
		if payment, ok := s.latestPayment(ticket.ID); ok {
			d.Payment = &payment
		}

		details = append(details, d)
	}

	sort.Slice(details, func(i, j int) bool {
		if !details[i].DepartureTime.Equal(details[j].DepartureTime) {
			return details[i].DepartureTime.After(details[j].DepartureTime)
		}
		return details[i].CreatedAt.After(details[j].CreatedAt)
	})

	return details, nil
}

func (s Tickets) CountBooked(ctx context.Context, scheduleID string, class entity.FareClass) (int, error) {
	defer s.lock(ctx)()

	count := 0
	for _, ticket := range s.tickets {
		if ticket.ScheduleID == scheduleID && ticket.Class == class && ticket.Status == entity.TicketStatusBooked {
			count++
		}
	}

	return count, nil
}

// Payments

func (s Payments) Create(ctx context.Context, payment entity.Payment) error {
	defer s.lock(ctx)()

	if _, ok := s.tickets[payment.TicketID]; !ok {
		return fmt.Errorf("could not insert payment: ticket %s does not exist", payment.TicketID)
	}
	if _, ok := s.payments[payment.ID]; ok {
		return fmt.Errorf("%w: payment %s already exists", entity.ErrConflict, payment.ID)
	}
	if payment.Status.Active() && s.hasActivePayment(payment.TicketID, payment.ID) {
		return fmt.Errorf("%w: ticket %s already has an active payment", entity.ErrConflict, payment.TicketID)
	}

	s.payments[payment.ID] = payment

	return nil
}

func (s Payments) Get(ctx context.Context, paymentID string) (entity.Payment, error) {
	defer s.lock(ctx)()

	payment, ok := s.payments[paymentID]
	if !ok {
		return entity.Payment{}, fmt.Errorf("%w: payment %s", entity.ErrNotFound, paymentID)
	}

	return payment, nil
}

func (s Payments) UpdateStatus(
	ctx context.Context,
	paymentID string,
	status entity.PaymentStatus,
	at time.Time,
) (entity.Payment, error) {
	defer s.lock(ctx)()

	payment, ok := s.payments[paymentID]
	if !ok {
		return entity.Payment{}, fmt.Errorf("%w: payment %s", entity.ErrNotFound, paymentID)
	}
	if status.Active() && s.hasActivePayment(payment.TicketID, paymentID) {
		return entity.Payment{}, fmt.Errorf("%w: ticket of payment %s already has an active payment", entity.ErrConflict, paymentID)
	}

	switch {
	case status != entity.PaymentStatusCompleted:
		payment.PaidAt = nil
	case payment.Status != entity.PaymentStatusCompleted:
		paidAt := at
		payment.PaidAt = &paidAt
	}
	payment.Status = status
	s.payments[paymentID] = payment

	return payment, nil
}

func (s *Store) hasActivePayment(ticketID, exceptPaymentID string) bool {
	for id, payment := range s.payments {
		if id != exceptPaymentID && payment.TicketID == ticketID && payment.Status.Active() {
			return true
		}
	}
	return false
}

func (s *Store) latestPayment(ticketID string) (entity.Payment, bool) {
	var (
		latest entity.Payment
		found  bool
	)
	for _, payment := range s.payments {
		if payment.TicketID != ticketID {
			continue
		}
		if !found || payment.CreatedAt.After(latest.CreatedAt) {
			latest = payment
			found = true
		}
	}
	return latest, found
}

// Events

// Publish records the event. Events published inside a transaction that
// rolls back are discarded with it.
func (s *Store) Publish(ctx context.Context, event any) error {
	defer s.lock(ctx)()

	s.events = append(s.events, event)

	return nil
}

func (s *Store) Events() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]any(nil), s.events...)
}
