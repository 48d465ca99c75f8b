package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"session-control-plane/internal/security"
	sessionrepo "session-control-plane/internal/session/repository"
	"session-control-plane/internal/telemetry"
)

// Sentinel errors for the auth service; the HTTP layer maps them to status codes.
var (
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected; all sessions revoked")
	ErrNoSession           = errors.New("no authenticated session in context")
)

// TokenPair is the outcome of login or refresh: a short-lived access token and
// the session's current refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	UserID       string
}

// AuthService implements session issuance, refresh-token rotation, and logout.
type AuthService struct {
	sessions SessionStore
	lookups  *Lookups
	tokens   *security.TokenProvider
	events   telemetry.EventEmitter
}

// NewAuthService returns an AuthService with the given dependencies. events
// may be nil; security events are then dropped.
func NewAuthService(sessions SessionStore, lookups *Lookups, tokens *security.TokenProvider, events telemetry.EventEmitter) *AuthService {
	return &AuthService{
		sessions: sessions,
		lookups:  lookups,
		tokens:   tokens,
		events:   events,
	}
}

// CompleteLogin creates a session for an authenticated user and returns its
// first token pair. The caller is responsible for having authenticated userID
// upstream (e.g. via the identity provider callback).
func (s *AuthService) CompleteLogin(ctx context.Context, userID string) (*TokenPair, error) {
	sess, err := s.sessions.Create(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	refreshToken, jti, _, err := s.tokens.IssueRefresh(sess.ID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetCurrentRefreshToken(ctx, sess.ID, jti); err != nil {
		return nil, fmt.Errorf("bind refresh token: %w", err)
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(sess.ID, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		SessionID:    sess.ID,
		UserID:       userID,
	}, nil
}

// Refresh validates the refresh token, rotates it, and returns a new token
// pair. Rotation is a single conditional update keyed on the presented token
// id, so under concurrent use of the same token exactly one caller wins; every
// other caller observes reuse.
//
// Reuse is treated as credential theft: the whole session family for the user
// is revoked, each presentation is recorded, and ErrRefreshTokenReuse is
// returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	// Fast path: a token already in the revocation ledger is a known reuse,
	// no need to attempt rotation.
	revoked, err := s.sessions.IsRefreshTokenRevoked(ctx, jti)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, s.escalateReuse(ctx, userID, sessionID, jti)
	}

	// A revoked or unknown session is a dead credential, not theft: logout
	// does not ledger the outstanding token id, so the ledger check above
	// cannot catch it. Read the store directly; the cached projection may
	// lag a revocation.
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.RevokedAt != nil {
		return nil, ErrInvalidRefreshToken
	}

	// Mint the replacement credential first so the rotation installs exactly
	// the jti the new token carries.
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	err = s.sessions.RotateRefreshToken(ctx, sessionID, jti, newJti)
	if errors.Is(err, sessionrepo.ErrTokenReuseDetected) {
		return nil, s.escalateReuse(ctx, userID, sessionID, jti)
	}
	if err != nil {
		return nil, err
	}
	s.lookups.InvalidateSession(ctx, sessionID)

	accessToken, accessExp, err := s.tokens.IssueAccess(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		SessionID:    sessionID,
		UserID:       userID,
	}, nil
}

// escalateReuse revokes every session belonging to userID, invalidates the
// cached projections, and emits security events. Always returns
// ErrRefreshTokenReuse.
func (s *AuthService) escalateReuse(ctx context.Context, userID, sessionID, jti string) error {
	count, err := s.sessions.RevokeAllByUser(ctx, userID)
	if err != nil {
		log.Printf("auth: revoke sessions for user %s after token reuse: %v", userID, err)
	}
	s.lookups.InvalidateSession(ctx, sessionID)
	now := time.Now().UTC()
	telemetry.EmitAsync(s.events, &telemetry.SecurityEvent{
		Type:      telemetry.EventRefreshTokenReuse,
		UserID:    userID,
		SessionID: sessionID,
		TokenID:   jti,
		At:        now,
	})
	telemetry.EmitAsync(s.events, &telemetry.SecurityEvent{
		Type:   telemetry.EventSessionsRevoked,
		UserID: userID,
		Count:  count,
		At:     now,
	})
	return ErrRefreshTokenReuse
}

// Logout revokes the session carried by the request identity. Idempotent: a
// session that is already revoked revokes cleanly again.
func (s *AuthService) Logout(ctx context.Context) error {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return ErrNoSession
	}
	if err := s.sessions.Revoke(ctx, id.SessionID); err != nil {
		return err
	}
	s.lookups.InvalidateSession(ctx, id.SessionID)
	return nil
}

// LogoutAll revokes every active session for the authenticated user and
// returns how many were revoked.
func (s *AuthService) LogoutAll(ctx context.Context) (int64, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return 0, ErrNoSession
	}
	userID := ""
	if id.User != nil {
		userID = id.User.ID
	}
	count, err := s.sessions.RevokeAllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.lookups.InvalidateSession(ctx, id.SessionID)
	telemetry.EmitAsync(s.events, &telemetry.SecurityEvent{
		Type:   telemetry.EventSessionsRevoked,
		UserID: userID,
		Count:  count,
		At:     time.Now().UTC(),
	})
	return count, nil
}
