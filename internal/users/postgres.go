package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production implementation.
//
// Expected schema:
//
//	CREATE TABLE users (
//	  id            uuid PRIMARY KEY,
//	  username      text NOT NULL,
//	  email         text NOT NULL UNIQUE,
//	  password_hash text NOT NULL,
//	  created_at    timestamptz NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	DB *pgxpool.Pool
}

func (s PostgresStore) Create(ctx context.Context, p CreateParams) (User, error) {
	id := uuid.New()
	var u User
	q := `
INSERT INTO users (id, username, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id::text, username, email, password_hash, created_at;
`
	err := s.DB.QueryRow(ctx, q, id, p.Username, p.Email, p.PasswordHash).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		// unique violation
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}

func (s PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	var u User
	q := `SELECT id::text, username, email, password_hash, created_at FROM users WHERE email=$1`
	err := s.DB.QueryRow(ctx, q, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
