package entity

import "time"

type User struct {
	ID        string    `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
