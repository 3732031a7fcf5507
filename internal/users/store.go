// Package users persists account records for the auth endpoints.
package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("email already registered")
	ErrNotFound = errors.New("user not found")
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
}

type Store interface {
	// Create inserts a new user; a duplicate email yields ErrConflict.
	Create(ctx context.Context, p CreateParams) (User, error)
	// GetByEmail returns ErrNotFound for unknown emails.
	GetByEmail(ctx context.Context, email string) (User, error)
}
