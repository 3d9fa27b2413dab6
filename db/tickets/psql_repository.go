package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"raillink/db"
	"raillink/entity"
)

const ticketColumns = `ticket_id, user_id, schedule_id, class, status, created_at, cancelled_at, completed_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, ticket entity.Ticket) error {
	if ticket.Status != entity.TicketStatusBooked {
		return fmt.Errorf("%w: ticket must be created as %s, got %s", entity.ErrValidation, entity.TicketStatusBooked, ticket.Status)
	}

	_, err := sqlx.NamedExecContext(ctx, db.ExecutorFromContext(ctx, r.db), `
		INSERT INTO tickets (ticket_id, user_id, schedule_id, class, status, created_at)
		VALUES (:ticket_id, :user_id, :schedule_id, :class, :status, :created_at)
	`, ticket)
	if err != nil {
		if db.IsErrorUniqueViolation(err) {
			return fmt.Errorf("%w: ticket %s already exists", entity.ErrConflict, ticket.ID)
		}
		return fmt.Errorf("could not insert ticket: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &ticket, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	if err != nil {
		return entity.Ticket{}, db.NotFoundOr(err, "ticket %s", ticketID)
	}

	return ticket, nil
}

// Cancel moves a Booked ticket to Cancelled. The status guard lives in the
// UPDATE itself, so a concurrent cancel or completion that commits first turns
// this call into ErrInvalidStateTransition.
func (r *PostgresRepository) Cancel(ctx context.Context, ticketID string, cancelledAt time.Time) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &ticket, `
		UPDATE tickets
		SET status = $2, cancelled_at = $3
		WHERE ticket_id = $1 AND status = $4
		RETURNING `+ticketColumns,
		ticketID, entity.TicketStatusCancelled, cancelledAt, entity.TicketStatusBooked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := r.Get(ctx, ticketID)
		if err != nil {
			return entity.Ticket{}, err
		}

		return entity.Ticket{}, fmt.Errorf(
			"%w: ticket %s is %s, only %s tickets can be cancelled",
			entity.ErrInvalidStateTransition, ticketID, current.Status, entity.TicketStatusBooked,
		)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not cancel ticket %s: %w", ticketID, err)
	}

	return ticket, nil
}

// CompleteDeparted promotes every Booked ticket whose schedule departed at or
// before now. An empty userID means all users.
func (r *PostgresRepository) CompleteDeparted(ctx context.Context, now time.Time, userID string) ([]entity.Ticket, error) {
	var completed []entity.Ticket
	err := sqlx.SelectContext(ctx, db.ExecutorFromContext(ctx, r.db), &completed, `
		UPDATE tickets t
		SET status = $2, completed_at = $1
		FROM schedules s
		WHERE t.schedule_id = s.schedule_id
		  AND t.status = $3
		  AND s.departure_time <= $1
		  AND ($4 = '' OR t.user_id::text = $4)
		RETURNING t.ticket_id, t.user_id, t.schedule_id, t.class, t.status, t.created_at, t.cancelled_at, t.completed_at
	`, now, entity.TicketStatusCompleted, entity.TicketStatusBooked, userID)
	if err != nil {
		return nil, fmt.Errorf("could not complete departed tickets: %w", err)
	}

	return completed, nil
}

type ticketDetailsRow struct {
	entity.Ticket

	DepartureTime      time.Time             `db:"departure_time"`
	ArrivalTime        time.Time             `db:"arrival_time"`
	ScheduleStatus     entity.ScheduleStatus `db:"schedule_status"`
	TrainID            string                `db:"train_id"`
	DepartureStationID string                `db:"departure_station_id"`
	ArrivalStationID   string                `db:"arrival_station_id"`
	PriceAmount        string                `db:"price_amount"`
	PriceCurrency      string                `db:"price_currency"`

	PaymentID        sql.NullString `db:"payment_id"`
	PaymentAmount    sql.NullString `db:"payment_amount"`
	PaymentCurrency  sql.NullString `db:"payment_currency"`
	PaymentStatus    sql.NullString `db:"payment_status"`
	PaymentCreatedAt sql.NullTime   `db:"payment_created_at"`
	PaidAt           sql.NullTime   `db:"paid_at"`
}

func (row ticketDetailsRow) toEntity() entity.TicketDetails {
	details := entity.TicketDetails{
		Ticket:             row.Ticket,
		DepartureTime:      row.DepartureTime,
		ArrivalTime:        row.ArrivalTime,
		ScheduleStatus:     row.ScheduleStatus,
		TrainID:            row.TrainID,
		DepartureStationID: row.DepartureStationID,
		ArrivalStationID:   row.ArrivalStationID,
		Price:              entity.Money{Amount: row.PriceAmount, Currency: row.PriceCurrency},
	}

	if row.PaymentID.Valid {
		payment := &entity.Payment{
			ID:        row.PaymentID.String,
			TicketID:  row.Ticket.ID,
			UserID:    row.Ticket.UserID,
			Amount:    entity.Money{Amount: row.PaymentAmount.String, Currency: row.PaymentCurrency.String},
			Status:    entity.PaymentStatus(row.PaymentStatus.String),
			CreatedAt: row.PaymentCreatedAt.Time,
		}
		if row.PaidAt.Valid {
			paidAt := row.PaidAt.Time
			payment.PaidAt = &paidAt
		}
		details.Payment = payment
	}

	return details
}

// FindDetailsByUser returns the user's tickets with a snapshot of the schedule,
// the fare and the latest payment, most recent departure first.
func (r *PostgresRepository) FindDetailsByUser(ctx context.Context, userID string) ([]entity.TicketDetails, error) {
	var rows []ticketDetailsRow
	err := sqlx.SelectContext(ctx, db.ExecutorFromContext(ctx, r.db), &rows, `
		SELECT
			t.ticket_id, t.user_id, t.schedule_id, t.class, t.status,
			t.created_at, t.cancelled_at, t.completed_at,
			s.departure_time, s.arrival_time, s.status AS schedule_status,
			s.train_id, s.departure_station_id, s.arrival_station_id,
			ss.price_amount, ss.price_currency,
			p.payment_id, p.amount AS payment_amount, p.currency AS payment_currency,
			p.status AS payment_status, p.created_at AS payment_created_at, p.paid_at
		FROM tickets t
		JOIN schedules s ON s.schedule_id = t.schedule_id
		JOIN schedule_seats ss ON ss.schedule_id = t.schedule_id AND ss.class = t.class
		LEFT JOIN LATERAL (
			SELECT payment_id, amount, currency, status, created_at, paid_at
			FROM payments
			WHERE payments.ticket_id = t.ticket_id
			ORDER BY created_at DESC
			LIMIT 1
		) p ON TRUE
		WHERE t.user_id = $1
		ORDER BY s.departure_time DESC, t.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not find tickets of user %s: %w", userID, err)
	}

	details := make([]entity.TicketDetails, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.toEntity())
	}

	return details, nil
}

// CountBooked is used to check the seat accounting invariant.
func (r *PostgresRepository) CountBooked(ctx context.Context, scheduleID string, class entity.FareClass) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &count, `
		SELECT COUNT(*)
		FROM tickets
		WHERE schedule_id = $1 AND class = $2 AND status = $3
	`, scheduleID, string(class), entity.TicketStatusBooked)
	if err != nil {
		return 0, fmt.Errorf("could not count booked tickets: %w", err)
	}

	return count, nil
}
