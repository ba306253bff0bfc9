package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-console/internal/core/domain"
)

// RBAC enforces role-based access control on top of the session. Roles are
// compared case-insensitively.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFrom(c)
			if sess == nil {
				return domain.ErrSessionNotFound
			}
			for _, role := range allowedRoles {
				if sess.HasRole(role) {
					return next(c)
				}
			}
			return domain.ErrForbidden
		}
	}
}
