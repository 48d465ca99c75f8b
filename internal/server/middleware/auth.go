// Package middleware provides the HTTP session gate: every protected route
// runs behind RequireSession, which resolves the access token to a live
// session and user before the handler sees the request.
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"session-control-plane/internal/auth"
	"session-control-plane/internal/security"
	"session-control-plane/internal/telemetry"
)

const bearerPrefix = "bearer "

// Internal failure reasons are collapsed to two external responses so callers
// cannot distinguish a missing session from a revoked or expired one.
type errorResponse struct {
	Error string `json:"error"`
}

var (
	unauthorizedBody = errorResponse{Error: "UNAUTHORIZED"}
	internalBody     = errorResponse{Error: "INTERNAL"}
)

// Gate holds the dependencies of the session middleware.
type Gate struct {
	tokens        *security.TokenProvider
	lookups       *auth.Lookups
	sessions      auth.SessionStore
	events        telemetry.EventEmitter
	maxInactivity time.Duration
	touchTimeout  time.Duration
}

// NewGate returns a Gate. maxInactivity bounds how long a session may sit
// unused before it is revoked on next presentation; touchTimeout bounds the
// background liveness write.
func NewGate(tokens *security.TokenProvider, lookups *auth.Lookups, sessions auth.SessionStore, events telemetry.EventEmitter, maxInactivity, touchTimeout time.Duration) *Gate {
	return &Gate{
		tokens:        tokens,
		lookups:       lookups,
		sessions:      sessions,
		events:        events,
		maxInactivity: maxInactivity,
		touchTimeout:  touchTimeout,
	}
}

// RequireSession validates the Bearer access token, resolves its session and
// user cache-first, enforces revocation and the inactivity limit, records
// liveness in the background, and stores the resolved identity in the request
// context for handlers.
func (g *Gate) RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearer(c.Request().Header.Get("Authorization"))
			if token == "" {
				return c.JSON(http.StatusUnauthorized, unauthorizedBody)
			}

			userID, sessionID, expiresAt, err := g.tokens.DecodeAccess(token)
			if err != nil {
				log.Printf("authgate: reject access token: %v", err)
				return c.JSON(http.StatusUnauthorized, unauthorizedBody)
			}

			ctx := c.Request().Context()
			sess, err := g.lookups.Session(ctx, sessionID)
			if err != nil {
				log.Printf("authgate: session lookup %s: %v", sessionID, err)
				return c.JSON(http.StatusInternalServerError, internalBody)
			}
			if sess == nil || sess.UserID != userID {
				return c.JSON(http.StatusUnauthorized, unauthorizedBody)
			}
			if sess.RevokedAt != nil {
				return c.JSON(http.StatusUnauthorized, unauthorizedBody)
			}

			if g.maxInactivity > 0 && sess.InactivityDuration(time.Now().UTC()) > g.maxInactivity {
				g.revokeInactive(ctx, sess.ID, sess.UserID)
				return c.JSON(http.StatusUnauthorized, unauthorizedBody)
			}

			user, err := g.lookups.User(ctx, userID)
			if err != nil {
				log.Printf("authgate: user lookup %s: %v", userID, err)
				return c.JSON(http.StatusInternalServerError, internalBody)
			}
			if user == nil {
				return c.JSON(http.StatusUnauthorized, unauthorizedBody)
			}

			// Liveness is recorded off the request path; the store coalesces
			// writes so hot sessions do not hammer the sessions table.
			g.touchAsync(sess.ID)

			reqCtx := auth.WithIdentity(ctx, auth.Identity{
				User:           user,
				SessionID:      sess.ID,
				TokenExpiresAt: expiresAt,
			})
			c.SetRequest(c.Request().WithContext(reqCtx))
			return next(c)
		}
	}
}

// revokeInactive retires a session that exceeded the inactivity limit. The
// request that tripped the limit is rejected regardless of whether the revoke
// write succeeds.
func (g *Gate) revokeInactive(ctx context.Context, sessionID, userID string) {
	if err := g.sessions.Revoke(ctx, sessionID); err != nil {
		log.Printf("authgate: revoke inactive session %s: %v", sessionID, err)
	}
	g.lookups.InvalidateSession(ctx, sessionID)
	telemetry.EmitAsync(g.events, &telemetry.SecurityEvent{
		Type:      telemetry.EventSessionInactivityRevoked,
		UserID:    userID,
		SessionID: sessionID,
		At:        time.Now().UTC(),
	})
}

// touchAsync updates last_used_at without blocking the request. Failures are
// logged only; liveness is advisory.
func (g *Gate) touchAsync(sessionID string) {
	timeout := g.touchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := g.sessions.Touch(touchCtx, sessionID); err != nil {
			log.Printf("authgate: touch session %s: %v", sessionID, err)
		}
	}()
}

// extractBearer returns the Bearer token from an Authorization header value,
// or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
