package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"session-control-plane/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that reads from the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id::text, email, username FROM users WHERE id = $1::uuid`
	var (
		u        domain.User
		username sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if username.Valid {
		u.Username = &username.String
	}
	return &u, nil
}
