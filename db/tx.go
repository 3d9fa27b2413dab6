package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	postgresUniqueValueViolationErrorCode = "23505"
	postgresSerializationFailureErrorCode = "40001"
	postgresDeadlockDetectedErrorCode     = "40P01"

	maxTxRetries = 5
)

type txKey struct{}

// Executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type Executor interface {
	sqlx.ExtContext
}

func ContextWithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction opened by Transactor, or nil.
func TxFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// ExecutorFromContext lets repositories join the caller's transaction when
// there is one and fall back to the pool otherwise.
func ExecutorFromContext(ctx context.Context, db *sqlx.DB) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

type Transactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) Transactor {
	if db == nil {
		panic("db must be set")
	}

	return Transactor{db: db}
}

// WithinTransaction runs fn in a READ COMMITTED transaction carried in ctx.
// Nested calls reuse the outer transaction.
func (t Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	return UpdateInTx(ctx, t.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// UpdateInTx commits only when fn succeeds and rolls back on error or panic.
// Serialization failures and deadlocks are retried with backoff.
func UpdateInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	return backoff.Retry(
		func() error {
			err := runInTx(ctx, db, isolation, fn)
			if err != nil && !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, maxTxRetries), ctx),
	)
}

func runInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("could not commit transaction: %w", commitErr)
		}
	}()

	return fn(ctx, tx)
}

func isRetryable(err error) bool {
	var psqlErr *pq.Error
	if !errors.As(err, &psqlErr) {
		return false
	}

	return psqlErr.Code == postgresSerializationFailureErrorCode ||
		psqlErr.Code == postgresDeadlockDetectedErrorCode
}

func IsErrorUniqueViolation(err error) bool {
	var psqlErr *pq.Error
	return errors.As(err, &psqlErr) && psqlErr.Code == postgresUniqueValueViolationErrorCode
}
