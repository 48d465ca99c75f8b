// Package telemetry emits auth security events (e.g. to OTel Logs).
// Emission is best-effort and must never affect the request outcome.
package telemetry

import (
	"context"
	"time"
)

// Security event types.
const (
	// EventRefreshTokenReuse is emitted when a refresh credential that was
	// already rotated away from is presented again.
	EventRefreshTokenReuse = "refresh_token_reuse"
	// EventSessionsRevoked is emitted after a bulk session-family revocation.
	EventSessionsRevoked = "sessions_revoked"
	// EventSessionInactivityRevoked is emitted when a session is revoked for
	// exceeding the inactivity limit.
	EventSessionInactivityRevoked = "session_inactivity_revoked"
)

// SecurityEvent describes a single auth security occurrence.
type SecurityEvent struct {
	Type      string
	UserID    string
	SessionID string
	TokenID   string
	// Count carries the number of sessions affected for bulk revocations.
	Count int64
	At    time.Time
}

// EventEmitter emits security events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SecurityEvent) error
}
