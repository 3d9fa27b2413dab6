package users

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

func (r *PostgresRepository) Store(ctx context.Context, user entity.User) error {
	_, err := sqlx.NamedExecContext(ctx, db.ExecutorFromContext(ctx, r.db), `
		INSERT INTO users (user_id, email, created_at)
		VALUES (:user_id, :email, :created_at)
		ON CONFLICT DO NOTHING
	`, user)
	if err != nil {
		return fmt.Errorf("could not insert user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, db.ExecutorFromContext(ctx, r.db), &exists, `
		SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)
	`, userID)
	if err != nil {
		return false, fmt.Errorf("could not check user %s: %w", userID, err)
	}

	return exists, nil
}
