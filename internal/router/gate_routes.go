package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-gate-access/internal/handler"    // workflow handlers
	"github.com/iliyamo/society-gate-access/internal/middleware" // JWT + actor + role middlewares
	"github.com/iliyamo/society-gate-access/internal/model"
)

// RegisterGate registers the authenticated workflow endpoints under
// /v1.  Every route runs JWT validation, actor resolution and the rate
// limiter; role checks are attached per route because guards, residents
// and admins each own a different slice of the workflow.
func RegisterGate(e *echo.Echo, entries *handler.EntryHandler, codes *handler.CodeHandler, visits *handler.PreApprovedHandler, jwtSecret string, loadActor, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		loadActor,
		limiter,
	)

	guard := middleware.RequireRole(model.RoleGuard, model.RoleAdmin)
	resident := middleware.RequireRole(model.RoleResident)

	g.GET("/me", me)

	// ---- Walk-in entries ----
	g.POST("/entries", entries.Create, guard)
	g.GET("/entries", entries.List)
	g.GET("/entries/:id", entries.Get)
	g.POST("/entries/:id/approvals", entries.Respond, resident)
	g.GET("/entries/:id/approvals/status", entries.ApprovalStatus)
	g.POST("/entries/:id/guard", entries.GuardDecision, guard)
	g.POST("/entries/:id/exit", entries.Exit, guard)

	// ---- Check-in codes and gate passes ----
	g.POST("/codes", codes.Create, resident)
	g.GET("/codes", codes.List)
	g.POST("/codes/redeem", codes.Redeem, guard)
	g.POST("/passes/:id/approvals", codes.PassRespond, resident)

	// ---- Pre-approved visits ----
	g.GET("/preapproved/:id", visits.Get)
	g.POST("/preapproved/:id/guard", visits.GuardDecision, guard)
	g.POST("/preapproved/:id/exit", visits.Exit, guard)
}
