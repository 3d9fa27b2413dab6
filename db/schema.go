package db

import (
	"github.com/jmoiron/sqlx"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS schedules (
			schedule_id UUID PRIMARY KEY,
			train_id VARCHAR(255) NOT NULL,
			departure_station_id VARCHAR(255) NOT NULL,
			arrival_station_id VARCHAR(255) NOT NULL,
			departure_time TIMESTAMPTZ NOT NULL,
			arrival_time TIMESTAMPTZ NOT NULL,
			status VARCHAR(16) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS schedules_route_idx ON schedules (departure_station_id, arrival_station_id, departure_time);

		CREATE TABLE IF NOT EXISTS schedule_seats (
			schedule_id UUID NOT NULL REFERENCES schedules (schedule_id) ON DELETE CASCADE,
			class VARCHAR(16) NOT NULL,
			price_amount NUMERIC(12, 2) NOT NULL,
			price_currency CHAR(3) NOT NULL,
			capacity INT NOT NULL,
			seats_left INT NOT NULL,
			PRIMARY KEY (schedule_id, class),
			CHECK (capacity >= 0),
			CHECK (seats_left >= 0 AND seats_left <= capacity)
		);

		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users (user_id),
			schedule_id UUID NOT NULL REFERENCES schedules (schedule_id),
			class VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			cancelled_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			CHECK ((status = 'Cancelled') = (cancelled_at IS NOT NULL)),
			CHECK ((status = 'Completed') = (completed_at IS NOT NULL))
		);

		CREATE INDEX IF NOT EXISTS tickets_user_id_idx ON tickets (user_id);
		CREATE INDEX IF NOT EXISTS tickets_booked_schedule_idx ON tickets (schedule_id) WHERE status = 'Booked';

		CREATE TABLE IF NOT EXISTS payments (
			payment_id UUID PRIMARY KEY,
			ticket_id UUID NOT NULL REFERENCES tickets (ticket_id),
			user_id UUID NOT NULL,
			amount NUMERIC(12, 2) NOT NULL,
			currency CHAR(3) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			paid_at TIMESTAMPTZ
		);

		CREATE UNIQUE INDEX IF NOT EXISTS payments_active_ticket_idx ON payments (ticket_id) WHERE status <> 'Failed';

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMPTZ NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS read_model_ops_tickets (
			ticket_id UUID PRIMARY KEY,
			payload JSONB NOT NULL
		);
	`)
	return err
}
