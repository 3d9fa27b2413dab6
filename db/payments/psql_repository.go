package payments

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

const paymentColumns = `payment_id, ticket_id, user_id, amount, currency, status, created_at, paid_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &PostgresRepository{db: db}
}

type paymentRow struct {
	ID        string               `db:"payment_id"`
	TicketID  string               `db:"ticket_id"`
	UserID    string               `db:"user_id"`
	Amount    string               `db:"amount"`
	Currency  string               `db:"currency"`
	Status    entity.PaymentStatus `db:"status"`
	CreatedAt time.Time            `db:"created_at"`
	PaidAt    *time.Time           `db:"paid_at"`
}

func newPaymentRow(p entity.Payment) paymentRow {
	return paymentRow{
		ID:        p.ID,
		TicketID:  p.TicketID,
		UserID:    p.UserID,
		Amount:    p.Amount.Amount,
		Currency:  p.Amount.Currency,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		PaidAt:    p.PaidAt,
	}
}

func (row paymentRow) toEntity() entity.Payment {
	return entity.Payment{
		ID:        row.ID,
		TicketID:  row.TicketID,
		UserID:    row.UserID,
		Amount:    entity.Money{Amount: row.Amount, Currency: row.Currency},
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		PaidAt:    row.PaidAt,
	}
}

// Create inserts a payment. A ticket can hold only one Pending or Completed
// payment; a second one is rejected with ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, payment entity.Payment) error {
	_, err := sqlx.NamedExecContext(ctx, db.ExecutorFromContext(ctx, r.db), `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (:payment_id, :ticket_id, :user_id, :amount, :currency, :status, :created_at, :paid_at)
	`, newPaymentRow(payment))
	if err != nil {
		if db.IsErrorUniqueViolation(err) {
			return fmt.Errorf("%w: ticket %s already has an active payment", entity.ErrConflict, payment.TicketID)
		}
		return fmt.Errorf("could not insert payment: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, paymentID string) (entity.Payment, error) {
	var row paymentRow
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &row, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE payment_id = $1
	`, paymentID)
	if err != nil {
		return entity.Payment{}, db.NotFoundOr(err, "payment %s", paymentID)
	}

	return row.toEntity(), nil
}

// UpdateStatus sets the payment status. paid_at is stamped when the payment
// becomes Completed, kept while it stays Completed and cleared otherwise.
func (r *PostgresRepository) UpdateStatus(
	ctx context.Context,
	paymentID string,
	status entity.PaymentStatus,
	at time.Time,
) (entity.Payment, error) {
	var row paymentRow
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &row, `
		UPDATE payments
		SET paid_at = CASE
				WHEN $2::text <> $4::text THEN NULL
				WHEN status = $4 THEN paid_at
				ELSE $3::timestamptz
			END,
			status = $2
		WHERE payment_id = $1
		RETURNING `+paymentColumns,
		paymentID, status, at, entity.PaymentStatusCompleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, fmt.Errorf("%w: payment %s", entity.ErrNotFound, paymentID)
	}
	if err != nil {
		if db.IsErrorUniqueViolation(err) {
			return entity.Payment{}, fmt.Errorf("%w: ticket of payment %s already has an active payment", entity.ErrConflict, paymentID)
		}
		return entity.Payment{}, fmt.Errorf("could not update payment %s: %w", paymentID, err)
	}

	return row.toEntity(), nil
}

// FindByTicket returns the payments of a ticket, newest first.
func (r *PostgresRepository) FindByTicket(ctx context.Context, ticketID string) ([]entity.Payment, error) {
	var rows []paymentRow
	err := sqlx.SelectContext(ctx, db.ExecutorFromContext(ctx, r.db), &rows, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE ticket_id = $1
		ORDER BY created_at DESC
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("could not find payments of ticket %s: %w", ticketID, err)
	}

	result := make([]entity.Payment, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toEntity())
	}

	return result, nil
}
