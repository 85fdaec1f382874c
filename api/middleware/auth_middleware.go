package middleware

import (
	"webstack/internal/service"

	"github.com/labstack/echo/v4"
)

type AuthMiddleware struct {
	Auth *service.AuthService
}

// RequireAuth lets a request through when its access token is fresh or when the
// session can be refreshed in place.
func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac, ok := AuthFromContext(c)
		if !ok || m.Auth == nil {
			return service.ErrUnauthorized
		}
		if m.Auth.UserID(ac) != "" {
			return next(c)
		}
		session, err := m.Auth.Refresh(c.Request().Context(), ac)
		if err != nil {
			return err
		}
		if session == nil {
			return service.ErrUnauthorized
		}
		return next(c)
	}
}
