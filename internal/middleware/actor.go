package middleware

// actor.go resolves the authenticated user's row into a single
// authorization context that every handler reads, instead of each
// operation re-deriving role, society and apartment membership through
// ad hoc lookups.  It runs after JWTAuth, which puts the verified user
// id into the Echo context.

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/society-gate-access/internal/model"
    "github.com/iliyamo/society-gate-access/internal/repository"
)

const actorKey = "actor"

// LoadActor fetches the authenticated user once per request and stores
// the derived model.Actor in the context.  Requests from unknown or
// deactivated accounts are rejected here so handlers never see them.
func LoadActor(users *repository.UserRepo) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uid, ok := c.Get("user_id").(uint64)
            if !ok || uid == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authenticated user"})
            }
            u, err := users.GetByID(c.Request().Context(), uid)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
            }
            if !u.IsActive {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
            }
            c.Set(actorKey, model.Actor{
                UserID:      u.ID,
                Role:        u.Role,
                Society:     u.Society,
                Block:       u.Block,
                Apartment:   u.Apartment,
                Gate:        u.Gate,
                DeviceToken: u.DeviceToken,
            })
            return next(c)
        }
    }
}

// ActorFrom returns the authorization context stored by LoadActor.  The
// second result is false when the middleware did not run, which on a
// correctly registered route is a programming error.
func ActorFrom(c echo.Context) (model.Actor, bool) {
    a, ok := c.Get(actorKey).(model.Actor)
    return a, ok
}
