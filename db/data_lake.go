package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"raillink/entity"
)

type DataLake struct {
	db *sqlx.DB
}

func NewDataLake(db *sqlx.DB) DataLake {
	if db == nil {
		panic("db is nil")
	}

	return DataLake{db: db}
}

// StoreEvent is idempotent: re-delivered events are ignored.
func (s DataLake) StoreEvent(
	ctx context.Context,
	dataLakeEvent entity.DataLakeEvent,
) error {
	_, err := s.db.NamedExecContext(
		ctx,
		`
			INSERT INTO 
			    events (event_id, published_at, event_name, event_payload) 
			VALUES 
			    (:event_id, :published_at, :event_name, :event_payload)
			ON CONFLICT (event_id) DO NOTHING`,
		dataLakeEvent,
	)
	if err != nil {
		return fmt.Errorf("could not store %s event in data lake: %w", dataLakeEvent.ID, err)
	}

	return nil
}

func (s DataLake) GetEvents(ctx context.Context) ([]entity.DataLakeEvent, error) {
	var events []entity.DataLakeEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT event_id, published_at, event_name, event_payload
		FROM events
		ORDER BY published_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("could not get events from data lake: %w", err)
	}

	return events, nil
}
