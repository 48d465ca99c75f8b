// Package server assembles the HTTP surface: routes, session middleware, and
// graceful shutdown.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"session-control-plane/internal/server/handler"
	"session-control-plane/internal/server/middleware"
)

// Server wraps the echo instance.
type Server struct {
	echo *echo.Echo
}

// New builds the router. Routes under the session gate require a valid Bearer
// access token; /auth/refresh and /healthz are public.
func New(authH *handler.AuthHandler, gate *middleware.Gate) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/auth/refresh", authH.Refresh)

	protected := e.Group("", gate.RequireSession())
	protected.POST("/auth/logout", authH.Logout)
	protected.POST("/auth/logout-all", authH.LogoutAll)
	protected.GET("/auth/status", authH.Status)

	return &Server{echo: e}
}

// Start begins serving on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router, used by tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
