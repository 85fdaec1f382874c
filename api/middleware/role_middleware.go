package middleware

import (
	"net/http"

	"webstack/internal/entity"
	"webstack/internal/service"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
)

var roleProjection = bson.D{{Key: "roles", Value: 1}, {Key: "username", Value: 1}}

// RequireRole must run after RequireAuth.
func (m AuthMiddleware) RequireRole(role entity.UserRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac, ok := AuthFromContext(c)
			if !ok || m.Auth == nil {
				return service.ErrUnauthorized
			}
			user, err := m.Auth.UserDetails(c.Request().Context(), ac, roleProjection)
			if err != nil {
				return err
			}
			if user == nil {
				return service.ErrUnauthorized
			}
			if !user.HasRole(role) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
