// Package handler exposes the session lifecycle over HTTP.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"session-control-plane/internal/auth"
)

type errorResponse struct {
	Error string `json:"error"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type logoutAllResponse struct {
	RevokedSessions int64 `json:"revoked_sessions"`
}

type statusResponse struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	Username       *string   `json:"username,omitempty"`
	SessionID      string    `json:"session_id"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// AuthHandler serves refresh, logout, and session status endpoints.
type AuthHandler struct {
	svc *auth.AuthService
}

// NewAuthHandler returns an AuthHandler over the given auth service.
func NewAuthHandler(svc *auth.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Refresh handles POST /auth/refresh. It exchanges a refresh token for a new
// token pair, rotating the refresh credential. Reuse of a rotated token, like
// any other validation failure, is reported as a plain 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
	}

	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrInvalidRefreshToken), errors.Is(err, auth.ErrRefreshTokenReuse):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
	case err != nil:
		log.Printf("handler: refresh: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
	}

	return c.JSON(http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

// Logout handles POST /auth/logout. Runs behind the session middleware;
// revokes the caller's current session.
func (h *AuthHandler) Logout(c echo.Context) error {
	err := h.svc.Logout(c.Request().Context())
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
	case err != nil:
		log.Printf("handler: logout: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all. Revokes every session of the
// authenticated user and reports how many were revoked.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	count, err := h.svc.LogoutAll(c.Request().Context())
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
	case err != nil:
		log.Printf("handler: logout all: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL"})
	}
	return c.JSON(http.StatusOK, logoutAllResponse{RevokedSessions: count})
}

// Status handles GET /auth/status. Runs behind the session middleware and
// echoes the resolved identity, mainly for clients checking token validity.
func (h *AuthHandler) Status(c echo.Context) error {
	id, ok := auth.IdentityFrom(c.Request().Context())
	if !ok || id.User == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
	}
	return c.JSON(http.StatusOK, statusResponse{
		UserID:         id.User.ID,
		Email:          id.User.Email,
		Username:       id.User.Username,
		SessionID:      id.SessionID,
		TokenExpiresAt: id.TokenExpiresAt,
	})
}
