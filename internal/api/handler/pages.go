package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/99minutos/admin-console/internal/api/middleware"
)

// NewPagesHandler serves the dashboard build from dir with index.html
// fallback for client-side routes. Without a dir it renders a placeholder
// page for the signed-in user.
func NewPagesHandler(dir string) echo.HandlerFunc {
	if dir != "" {
		return echomiddleware.StaticWithConfig(echomiddleware.StaticConfig{
			Root:  dir,
			Index: "index.html",
			HTML5: true,
		})(echo.NotFoundHandler)
	}

	return func(c echo.Context) error {
		name := ""
		if sess := middleware.SessionFrom(c); sess != nil {
			name = sess.Name
		}
		return c.Render(http.StatusOK, "placeholder.html", map[string]string{"Name": name})
	}
}
