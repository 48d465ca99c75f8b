package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"session-control-plane/internal/session/domain"
)

// PostgresRepository persists sessions in Postgres. All conditional mutations
// are single statements (or a single transaction) so concurrent callers for
// the same session are race-safe at the database level.
type PostgresRepository struct {
	db            *sql.DB
	touchInterval time.Duration
}

// NewPostgresRepository returns a session repository over the given db.
// touchInterval is the liveness write coalescing window (1h in the reference policy).
func NewPostgresRepository(db *sql.DB, touchInterval time.Duration) *PostgresRepository {
	if touchInterval <= 0 {
		touchInterval = time.Hour
	}
	return &PostgresRepository{db: db, touchInterval: touchInterval}
}

const sessionColumns = `
	id::text,
	user_id::text,
	created_at,
	last_used_at,
	revoked_at,
	refresh_token_id::text,
	refresh_token_issued_at`

// Create inserts a new session row. refreshTokenID may be empty.
func (r *PostgresRepository) Create(ctx context.Context, userID, refreshTokenID string) (*domain.Session, error) {
	query := `
	INSERT INTO auth_sessions (user_id, refresh_token_id, refresh_token_issued_at)
	VALUES ($1::uuid, $2::uuid, CASE WHEN $2::uuid IS NULL THEN NULL ELSE NOW() END)
	RETURNING` + sessionColumns
	row := r.db.QueryRowContext(ctx, query, userID, nullString(refreshTokenID))
	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM auth_sessions WHERE id = $1::uuid`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Touch sets last_used_at to now when the coalescing window has elapsed since
// the prior value, or it was never set. The predicate lives in the statement
// itself, not in a prior read, so concurrent touches cannot write stale values.
func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	query := `
	UPDATE auth_sessions
	SET last_used_at = NOW()
	WHERE id = $1::uuid
	  AND (
	    last_used_at IS NULL
	    OR last_used_at < NOW() - make_interval(secs => $2)
	  )`
	if _, err := r.db.ExecContext(ctx, query, id, r.touchInterval.Seconds()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks the session revoked if it is not already. Idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	query := `
	UPDATE auth_sessions
	SET revoked_at = NOW()
	WHERE id = $1::uuid
	  AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllByUser retires every live refresh credential of the user into the
// revocation ledger and revokes every unrevoked session, in one transaction.
// Returns the number of sessions newly revoked.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("revoke all: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ledger := `
	INSERT INTO revoked_refresh_tokens (token_id, user_id, revoked_reason)
	SELECT refresh_token_id, user_id, $2
	FROM auth_sessions
	WHERE user_id = $1::uuid
	  AND refresh_token_id IS NOT NULL
	ON CONFLICT (token_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ledger, userID, domain.RevokedReasonReuse); err != nil {
		return 0, fmt.Errorf("revoke all: ledger insert: %w", err)
	}

	revoke := `
	UPDATE auth_sessions
	SET revoked_at = NOW()
	WHERE user_id = $1::uuid
	  AND revoked_at IS NULL`
	res, err := tx.ExecContext(ctx, revoke, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all: update: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("revoke all: commit: %w", err)
	}
	return count, nil
}

// RotateRefreshToken replaces the session's current refresh credential id with
// newID only if it still equals oldID and the session has not been revoked,
// and records oldID in the revocation ledger, all in one transaction. The
// conditional update is the linearization point: of any number of concurrent
// rotations from the same oldID, exactly one matches a row; the rest get
// ErrTokenReuseDetected. A revoked session never matches, so its tokens can
// never rotate back to life.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, sessionID, oldID, newID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rotate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	swap := `
	UPDATE auth_sessions
	SET refresh_token_id = $3::uuid,
	    refresh_token_issued_at = NOW()
	WHERE id = $1::uuid
	  AND refresh_token_id = $2::uuid
	  AND revoked_at IS NULL
	RETURNING user_id::text`
	var userID string
	if err := tx.QueryRowContext(ctx, swap, sessionID, oldID, newID).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenReuseDetected
		}
		return fmt.Errorf("rotate: swap: %w", err)
	}

	ledger := `
	INSERT INTO revoked_refresh_tokens (token_id, user_id, revoked_reason)
	VALUES ($1::uuid, $2::uuid, $3)
	ON CONFLICT (token_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ledger, oldID, userID, domain.RevokedReasonRotation); err != nil {
		return fmt.Errorf("rotate: ledger insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rotate: commit: %w", err)
	}
	return nil
}

// SetCurrentRefreshToken unconditionally binds refreshTokenID to the session.
func (r *PostgresRepository) SetCurrentRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	query := `
	UPDATE auth_sessions
	SET refresh_token_id = $2::uuid,
	    refresh_token_issued_at = NOW()
	WHERE id = $1::uuid`
	if _, err := r.db.ExecContext(ctx, query, sessionID, refreshTokenID); err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return nil
}

// IsRefreshTokenRevoked reports whether tokenID appears in the revocation ledger.
func (r *PostgresRepository) IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_refresh_tokens WHERE token_id = $1::uuid)`
	var revoked bool
	if err := r.db.QueryRowContext(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		s              domain.Session
		lastUsedAt     sql.NullTime
		revokedAt      sql.NullTime
		refreshTokenID sql.NullString
		refreshIssued  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &lastUsedAt, &revokedAt, &refreshTokenID, &refreshIssued)
	if err != nil {
		return nil, err
	}
	s.LastUsedAt = nullTimeToPtr(lastUsedAt)
	s.RevokedAt = nullTimeToPtr(revokedAt)
	if refreshTokenID.Valid {
		s.RefreshTokenID = refreshTokenID.String
	}
	s.RefreshTokenIssuedAt = nullTimeToPtr(refreshIssued)
	return &s, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
