package inventory

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"raillink/db"
	"raillink/entity"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &PostgresRepository{db: db}
}

// Reserve takes one seat of the given class. The check and the decrement are a
// single statement, so concurrent reservations on the same row serialise on its
// lock and re-check seats_left after waiting. Seats of a cancelled schedule are
// never taken, whatever the caller saw before the transaction.
func (r *PostgresRepository) Reserve(ctx context.Context, scheduleID string, class entity.FareClass) error {
	if err := class.Validate(); err != nil {
		return err
	}

	q := db.ExecutorFromContext(ctx, r.db)

	res, err := q.ExecContext(ctx, `
		UPDATE schedule_seats ss
		SET seats_left = ss.seats_left - 1
		FROM schedules s
		WHERE ss.schedule_id = $1 AND ss.class = $2 AND ss.seats_left > 0
			AND s.schedule_id = ss.schedule_id AND s.status <> 'Cancelled'
	`, scheduleID, string(class))
	if err != nil {
		return fmt.Errorf("could not reserve %s seat on schedule %s: %w", class, scheduleID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var status entity.ScheduleStatus
	err = sqlx.GetContext(ctx, q, &status, `SELECT status FROM schedules WHERE schedule_id = $1`, scheduleID)
	if err == nil && status == entity.ScheduleStatusCancelled {
		return fmt.Errorf("%w: schedule %s is cancelled", entity.ErrValidation, scheduleID)
	}

	return fmt.Errorf("%w: no %s seats left on schedule %s", entity.ErrSeatUnavailable, class, scheduleID)
}

// Release gives one seat back, never going above capacity.
func (r *PostgresRepository) Release(ctx context.Context, scheduleID string, class entity.FareClass) error {
	if err := class.Validate(); err != nil {
		return err
	}

	res, err := db.ExecutorFromContext(ctx, r.db).ExecContext(ctx, `
		UPDATE schedule_seats
		SET seats_left = LEAST(seats_left + 1, capacity)
		WHERE schedule_id = $1 AND class = $2
	`, scheduleID, string(class))
	if err != nil {
		return fmt.Errorf("could not release %s seat on schedule %s: %w", class, scheduleID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: no %s seat inventory for schedule %s", entity.ErrNotFound, class, scheduleID)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, scheduleID string, class entity.FareClass) (entity.SeatInventory, error) {
	var row struct {
		Class         entity.FareClass `db:"class"`
		PriceAmount   string           `db:"price_amount"`
		PriceCurrency string           `db:"price_currency"`
		Capacity      int              `db:"capacity"`
		SeatsLeft     int              `db:"seats_left"`
	}
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &row, `
		SELECT class, price_amount, price_currency, capacity, seats_left
		FROM schedule_seats
		WHERE schedule_id = $1 AND class = $2
	`, scheduleID, string(class))
	if err != nil {
		return entity.SeatInventory{}, db.NotFoundOr(err, "seat inventory %s/%s", scheduleID, class)
	}

	return entity.SeatInventory{
		Class:     row.Class,
		Price:     entity.Money{Amount: row.PriceAmount, Currency: row.PriceCurrency},
		Capacity:  row.Capacity,
		SeatsLeft: row.SeatsLeft,
	}, nil
}
