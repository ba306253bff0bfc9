package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-console/internal/api/middleware"
	"github.com/99minutos/admin-console/internal/core/domain"
)

// ctxSession returns the session loaded by middleware.LoadSession and fails
// fast when the request is anonymous, before any service call.
func ctxSession(c echo.Context) (*domain.Session, error) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}
