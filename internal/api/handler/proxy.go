package handler

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/99minutos/admin-console/internal/api/middleware"
	"github.com/99minutos/admin-console/internal/infrastructure/backend"
)

// NewAPIProxy forwards /api/* to the remote REST API. The browser's cookies
// stay here; the upstream only sees the session's bearer token.
func NewAPIProxy(target *url.URL, base http.RoundTripper) echo.HandlerFunc {
	proxy := echomiddleware.ProxyWithConfig(echomiddleware.ProxyConfig{
		Balancer: echomiddleware.NewRoundRobinBalancer([]*echomiddleware.ProxyTarget{{URL: target}}),
		Rewrite: map[string]string{
			"/api/*": "/$1",
		},
		Transport: &backend.BearerTransport{Base: base},
	})(echo.NotFoundHandler)

	return func(c echo.Context) error {
		req := c.Request()
		req.Header.Del("Cookie")
		if sess := middleware.SessionFrom(c); sess != nil {
			req = req.WithContext(backend.WithAccessToken(req.Context(), sess.AccessToken))
		}
		c.SetRequest(req)
		return proxy(c)
	}
}
