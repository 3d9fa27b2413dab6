package read_model_ops_tickets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"

	"raillink/db"
	"raillink/entity"
)

// OpsTicketReadModel keeps a denormalized operator view of every ticket.
// Events may arrive in any order, so every handler upserts and merges.
type OpsTicketReadModel struct {
	db *sqlx.DB
}

func NewOpsTicketReadModel(db *sqlx.DB) OpsTicketReadModel {
	if db == nil {
		panic("db is nil")
	}

	return OpsTicketReadModel{db: db}
}

func (r OpsTicketReadModel) AllTickets(ctx context.Context, statusFilter entity.TicketStatus) ([]entity.OpsTicket, error) {
	query := "SELECT payload FROM read_model_ops_tickets"
	var queryArgs []any

	if statusFilter != "" {
		query += " WHERE payload ->> 'status' = $1"
		queryArgs = append(queryArgs, string(statusFilter))
	}
	query += " ORDER BY payload ->> 'booked_at'"

	rows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []entity.OpsTicket{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		rm, err := r.unmarshalReadModelFromDB(payload)
		if err != nil {
			return nil, err
		}

		result = append(result, rm)
	}

	return result, rows.Err()
}

func (r OpsTicketReadModel) TicketReadModel(ctx context.Context, ticketID string) (entity.OpsTicket, error) {
	rm, err := r.findReadModelByTicketID(ctx, ticketID, r.db)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OpsTicket{}, fmt.Errorf("%w: ops ticket %s", entity.ErrNotFound, ticketID)
	}

	return rm, err
}

func (r OpsTicketReadModel) OnTicketBooked(ctx context.Context, event *entity.TicketBooked_v1) error {
	return r.updateReadModel(ctx, event.TicketID, func(rm entity.OpsTicket) (entity.OpsTicket, error) {
		rm.UserID = event.UserID
		rm.ScheduleID = event.ScheduleID
		rm.Class = event.Class
		rm.BookedAt = event.BookedAt
		if rm.Status == "" {
			rm.Status = entity.TicketStatusBooked
		}

		return rm, nil
	})
}

func (r OpsTicketReadModel) OnTicketCancelled(ctx context.Context, event *entity.TicketCancelled_v1) error {
	return r.updateReadModel(ctx, event.TicketID, func(rm entity.OpsTicket) (entity.OpsTicket, error) {
		fillTicketRef(&rm, event.UserID, event.ScheduleID, event.Class)
		rm.Status = entity.TicketStatusCancelled
		rm.CancelledAt = event.CancelledAt

		return rm, nil
	})
}

func (r OpsTicketReadModel) OnTicketCompleted(ctx context.Context, event *entity.TicketCompleted_v1) error {
	return r.updateReadModel(ctx, event.TicketID, func(rm entity.OpsTicket) (entity.OpsTicket, error) {
		fillTicketRef(&rm, event.UserID, event.ScheduleID, event.Class)
		rm.Status = entity.TicketStatusCompleted
		rm.CompletedAt = event.CompletedAt

		return rm, nil
	})
}

func (r OpsTicketReadModel) OnPaymentRecorded(ctx context.Context, event *entity.PaymentRecorded_v1) error {
	return r.updateReadModel(ctx, event.TicketID, func(rm entity.OpsTicket) (entity.OpsTicket, error) {
		if rm.UserID == "" {
			rm.UserID = event.UserID
		}

		payment, ok := rm.Payments[event.PaymentID]
		if !ok {
			log.
				FromContext(ctx).
				WithField("payment_id", event.PaymentID).
				Debug("Creating payment in ops ticket read model")
		}

		payment.Amount = event.Amount
		payment.RecordedAt = event.Header.PublishedAt
		if payment.Status == "" {
			payment.Status = event.Status
			if event.PaidAt != nil {
				payment.PaidAt = *event.PaidAt
			}
		}

		rm.Payments[event.PaymentID] = payment

		return rm, nil
	})
}

func (r OpsTicketReadModel) OnPaymentStatusUpdated(ctx context.Context, event *entity.PaymentStatusUpdated_v1) error {
	return r.updateReadModel(ctx, event.TicketID, func(rm entity.OpsTicket) (entity.OpsTicket, error) {
		payment := rm.Payments[event.PaymentID]
		payment.Status = event.Status
		payment.PaidAt = time.Time{}
		if event.PaidAt != nil {
			payment.PaidAt = *event.PaidAt
		}

		rm.Payments[event.PaymentID] = payment

		return rm, nil
	})
}

func fillTicketRef(rm *entity.OpsTicket, userID, scheduleID string, class entity.FareClass) {
	if rm.UserID == "" {
		rm.UserID = userID
	}
	if rm.ScheduleID == "" {
		rm.ScheduleID = scheduleID
	}
	if rm.Class == "" {
		rm.Class = class
	}
}

func (r OpsTicketReadModel) updateReadModel(
	ctx context.Context,
	ticketID string,
	updateFunc func(rm entity.OpsTicket) (entity.OpsTicket, error),
) error {
	return db.UpdateInTx(
		ctx,
		r.db,
		sql.LevelRepeatableRead,
		func(ctx context.Context, tx *sqlx.Tx) error {
			rm, err := r.findReadModelByTicketID(ctx, ticketID, tx)
			if errors.Is(err, sql.ErrNoRows) {
				rm = entity.OpsTicket{
					TicketID: ticketID,
					Payments: map[string]entity.OpsPayment{},
				}
			} else if err != nil {
				return fmt.Errorf("could not find read model: %w", err)
			}

			updatedRm, err := updateFunc(rm)
			if err != nil {
				return err
			}

			return r.storeReadModel(ctx, tx, updatedRm)
		},
	)
}

func (r OpsTicketReadModel) storeReadModel(
	ctx context.Context,
	tx *sqlx.Tx,
	rm entity.OpsTicket,
) error {
	rm.LastUpdate = time.Now()

	payload, err := json.Marshal(rm)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO
			read_model_ops_tickets (payload, ticket_id)
		VALUES
			($1, $2)
		ON CONFLICT (ticket_id) DO UPDATE SET payload = excluded.payload;
		`, payload, rm.TicketID)
	if err != nil {
		return fmt.Errorf("could not update read model: %w", err)
	}

	return nil
}

func (r OpsTicketReadModel) findReadModelByTicketID(
	ctx context.Context,
	ticketID string,
	q db.Executor,
) (entity.OpsTicket, error) {
	var payload []byte

	err := q.QueryRowxContext(
		ctx,
		"SELECT payload FROM read_model_ops_tickets WHERE ticket_id = $1 FOR UPDATE",
		ticketID,
	).Scan(&payload)
	if err != nil {
		return entity.OpsTicket{}, err
	}

	return r.unmarshalReadModelFromDB(payload)
}

func (r OpsTicketReadModel) unmarshalReadModelFromDB(payload []byte) (entity.OpsTicket, error) {
	var dbReadModel entity.OpsTicket
	if err := json.Unmarshal(payload, &dbReadModel); err != nil {
		return entity.OpsTicket{}, err
	}

	if dbReadModel.Payments == nil {
		dbReadModel.Payments = map[string]entity.OpsPayment{}
	}

	return dbReadModel, nil
}
