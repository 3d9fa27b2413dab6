package schedules

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

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

type seatRow struct {
	ScheduleID    string           `db:"schedule_id"`
	Class         entity.FareClass `db:"class"`
	PriceAmount   string           `db:"price_amount"`
	PriceCurrency string           `db:"price_currency"`
	Capacity      int              `db:"capacity"`
	SeatsLeft     int              `db:"seats_left"`
}

// Store inserts the schedule with one seat pool per fare class.
// Storing an equivalent schedule again is a no-op; a different schedule
// under an existing ID is a conflict.
func (r *PostgresRepository) Store(ctx context.Context, schedule entity.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	return db.NewTransactor(r.db).WithinTransaction(ctx, func(ctx context.Context) error {
		q := db.ExecutorFromContext(ctx, r.db)

		res, err := sqlx.NamedExecContext(ctx, q, `
			INSERT INTO schedules (schedule_id, train_id, departure_station_id, arrival_station_id, departure_time, arrival_time, status)
			VALUES (:schedule_id, :train_id, :departure_station_id, :arrival_station_id, :departure_time, :arrival_time, :status)
			ON CONFLICT DO NOTHING -- ignore if already exists
		`, schedule)
		if err != nil {
			return fmt.Errorf("could not insert schedule: %w", err)
		}
		if inserted, err := res.RowsAffected(); err != nil {
			return err
		} else if inserted == 0 {
			stored, err := r.Get(ctx, schedule.ID)
			if err != nil {
				return err
			}
			if !stored.Equivalent(schedule) {
				return fmt.Errorf("%w: schedule %s already exists with different details", entity.ErrConflict, schedule.ID)
			}
			return nil
		}

		for _, class := range entity.FareClasses {
			seats := schedule.Seats[class]
			_, err := sqlx.NamedExecContext(ctx, q, `
				INSERT INTO schedule_seats (schedule_id, class, price_amount, price_currency, capacity, seats_left)
				VALUES (:schedule_id, :class, :price_amount, :price_currency, :capacity, :seats_left)
			`, seatRow{
				ScheduleID:    schedule.ID,
				Class:         class,
				PriceAmount:   seats.Price.Amount,
				PriceCurrency: seats.Price.Currency,
				Capacity:      seats.Capacity,
				SeatsLeft:     seats.SeatsLeft,
			})
			if err != nil {
				return fmt.Errorf("could not insert %s seats: %w", class, err)
			}
		}

		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, scheduleID string) (entity.Schedule, error) {
	q := db.ExecutorFromContext(ctx, r.db)

	var schedule entity.Schedule
	err := sqlx.GetContext(ctx, q, &schedule, `
		SELECT schedule_id, train_id, departure_station_id, arrival_station_id, departure_time, arrival_time, status
		FROM schedules
		WHERE schedule_id = $1
	`, scheduleID)
	if err != nil {
		return entity.Schedule{}, db.NotFoundOr(err, "schedule %s", scheduleID)
	}

	seats, err := r.seats(ctx, []string{scheduleID})
	if err != nil {
		return entity.Schedule{}, err
	}
	schedule.Seats = seats[scheduleID]

	return schedule, nil
}

// Search lists schedules matching the query ordered by departure time, with
// the current seats left and price of every fare class.
func (r *PostgresRepository) Search(ctx context.Context, query entity.ScheduleQuery) ([]entity.Schedule, error) {
	q := db.ExecutorFromContext(ctx, r.db)

	var schedules []entity.Schedule
	err := sqlx.SelectContext(ctx, q, &schedules, `
		SELECT schedule_id, train_id, departure_station_id, arrival_station_id, departure_time, arrival_time, status
		FROM schedules
		WHERE ($1::text = '' OR departure_station_id = $1)
			AND ($2::text = '' OR arrival_station_id = $2)
			AND ($3::timestamptz IS NULL OR (departure_time >= $3::timestamptz AND departure_time < $3::timestamptz + INTERVAL '1 day'))
		ORDER BY departure_time, schedule_id
	`, query.DepartureStationID, query.ArrivalStationID, nullTime(query.Date))
	if err != nil {
		return nil, fmt.Errorf("could not search schedules: %w", err)
	}
	if len(schedules) == 0 {
		return []entity.Schedule{}, nil
	}

	ids := make([]string, len(schedules))
	for i, s := range schedules {
		ids[i] = s.ID
	}

	seats, err := r.seats(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		schedules[i].Seats = seats[schedules[i].ID]
	}

	return schedules, nil
}

func (r *PostgresRepository) seats(ctx context.Context, scheduleIDs []string) (map[string]map[entity.FareClass]entity.SeatInventory, error) {
	var rows []seatRow
	err := sqlx.SelectContext(ctx, db.ExecutorFromContext(ctx, r.db), &rows, `
		SELECT schedule_id, class, price_amount, price_currency, capacity, seats_left
		FROM schedule_seats
		WHERE schedule_id = ANY($1::uuid[])
	`, pq.Array(scheduleIDs))
	if err != nil {
		return nil, fmt.Errorf("could not get seats of schedules %v: %w", scheduleIDs, err)
	}

	seats := make(map[string]map[entity.FareClass]entity.SeatInventory, len(scheduleIDs))
	for _, id := range scheduleIDs {
		seats[id] = make(map[entity.FareClass]entity.SeatInventory, len(entity.FareClasses))
	}
	for _, s := range rows {
		seats[s.ScheduleID][s.Class] = entity.SeatInventory{
			Class:     s.Class,
			Price:     entity.Money{Amount: s.PriceAmount, Currency: s.PriceCurrency},
			Capacity:  s.Capacity,
			SeatsLeft: s.SeatsLeft,
		}
	}

	return seats, nil
}

// UpdateStatus changes the operational status and optionally the timetable.
// Zero times keep the stored value.
func (r *PostgresRepository) UpdateStatus(
	ctx context.Context,
	scheduleID string,
	status entity.ScheduleStatus,
	departureTime time.Time,
	arrivalTime time.Time,
) error {
	if _, err := entity.ParseScheduleStatus(string(status)); err != nil {
		return err
	}

	res, err := db.ExecutorFromContext(ctx, r.db).ExecContext(ctx, `
		UPDATE schedules
		SET status = $2,
			departure_time = COALESCE($3, departure_time),
			arrival_time = COALESCE($4, arrival_time)
		WHERE schedule_id = $1
	`, scheduleID, status, nullTime(departureTime), nullTime(arrivalTime))
	if err != nil {
		return fmt.Errorf("could not update schedule %s: %w", scheduleID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: schedule %s", entity.ErrNotFound, scheduleID)
	}

	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
