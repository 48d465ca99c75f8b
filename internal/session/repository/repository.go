package repository

import (
	"context"
	"errors"

	"session-control-plane/internal/session/domain"
)

// ErrTokenReuseDetected is returned by RotateRefreshToken when the presented
// refresh-credential id is no longer the session's current one, i.e. it was
// already rotated away from once. Callers must treat this as a security event
// and escalate (typically by revoking the whole session family).
var ErrTokenReuseDetected = errors.New("refresh token reuse detected")

// Repository defines persistence for sessions and the refresh-token revocation
// ledger. Lookups return (nil, nil) for missing rows; errors are database
// failures only.
type Repository interface {
	// Create inserts a new session for userID. refreshTokenID may be empty for
	// an access-only session.
	Create(ctx context.Context, userID, refreshTokenID string) (*domain.Session, error)
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Touch updates last_used_at to now, but only when more than the coalescing
	// window has elapsed since the prior value (or it was never set). Single
	// conditional statement; race-safe under concurrent callers.
	Touch(ctx context.Context, id string) error
	// Revoke sets revoked_at if unset. Idempotent.
	Revoke(ctx context.Context, id string) error
	// RevokeAllByUser records every live refresh credential of the user in the
	// revocation ledger and revokes every unrevoked session, in one transaction.
	// Returns the number of sessions newly revoked.
	RevokeAllByUser(ctx context.Context, userID string) (int64, error)
	// RotateRefreshToken atomically replaces the session's current refresh
	// credential id with newID, but only if it still equals oldID, and records
	// oldID in the revocation ledger. Returns ErrTokenReuseDetected when oldID
	// was already superseded.
	RotateRefreshToken(ctx context.Context, sessionID, oldID, newID string) error
	// SetCurrentRefreshToken unconditionally binds refreshTokenID to the
	// session. Used by the login handoff, not by rotation.
	SetCurrentRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error
	// IsRefreshTokenRevoked reports ledger membership for tokenID.
	IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}
