package domain

import "time"

// Session represents one authenticated login lineage. Sessions are soft-revoked,
// never deleted; RevokedAt once set is never cleared. The struct is JSON-tagged
// because serialized sessions are projected into the read-through cache.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	// LastUsedAt is nil until the first liveness touch after creation.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	// RevokedAt is nil while the session is active.
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	// RefreshTokenID is the id (jti) of the single live refresh credential,
	// or empty for an access-only session.
	RefreshTokenID       string     `json:"refresh_token_id,omitempty"`
	RefreshTokenIssuedAt *time.Time `json:"refresh_token_issued_at,omitempty"`
}

// LastActivityAt returns the last liveness timestamp, falling back to creation
// time for sessions that were never touched.
func (s *Session) LastActivityAt() time.Time {
	if s.LastUsedAt != nil {
		return *s.LastUsedAt
	}
	return s.CreatedAt
}

// InactivityDuration returns how long the session has gone without activity as of now.
func (s *Session) InactivityDuration(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt())
}

// Revocation reasons recorded in the refresh-token ledger.
const (
	// RevokedReasonRotation marks a credential superseded by normal rotation.
	RevokedReasonRotation = "token_rotation"
	// RevokedReasonReuse marks credentials retired in bulk after reuse of an
	// already-rotated credential was detected.
	RevokedReasonReuse = "reuse_of_revoked_token"
)

// RevokedRefreshToken is an append-only ledger entry. A token id appears at
// most once; inserts are idempotent.
type RevokedRefreshToken struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"revoked_reason"`
	RevokedAt time.Time `json:"revoked_at"`
}
