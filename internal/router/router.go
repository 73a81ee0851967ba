package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/society-gate-access/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/society-gate-access/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; the rate limiter wraps login so
// credential stuffing burns through the caller's bucket, not the
// database.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// me returns the resolved authorization context of the caller; clients
// call it after login to learn their role, apartment and gate.
func me(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":   actor.UserID,
		"role":      actor.Role,
		"society":   actor.Society,
		"block":     actor.Block,
		"apartment": actor.Apartment,
		"gate":      actor.Gate,
	})
}
