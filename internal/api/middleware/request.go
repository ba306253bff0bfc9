package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-console/internal/core/service"
)

// RequestContext copies the request id assigned by echo's RequestID middleware
// into the request context so services can tag audit events with it.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(service.WithRequestID(req.Context(), id)))
			}
			return next(c)
		}
	}
}
