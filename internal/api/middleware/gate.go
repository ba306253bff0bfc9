package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/pkg/metrics"
)

// Authorizer decides whether a page request may proceed. Redirect is the page
// anonymous requests are sent to.
type Authorizer interface {
	Authorize(path string, sess *domain.Session) domain.Decision
	Redirect() string
}

// GateConfig configures the route gate middleware.
type GateConfig struct {
	// ExcludedPrefixes never reach the gate (static assets, API routes, images).
	ExcludedPrefixes []string
	// PreserveRedirect appends ?redirect=<requested URI> to the redirect target.
	PreserveRedirect bool
}

// Skip reports whether path bypasses the gate.
func (cfg GateConfig) Skip(path string) bool {
	for _, p := range cfg.ExcludedPrefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Gate enforces gate's decision on every non-excluded request. Redirects use
// 303 so a rejected POST turns into a GET of the login page.
func Gate(gate Authorizer, cfg GateConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if cfg.Skip(req.URL.Path) {
				return next(c)
			}

			decision := gate.Authorize(req.URL.Path, SessionFrom(c))
			if decision.Allow {
				metrics.GateDecisionsTotal.WithLabelValues("allow").Inc()
				return next(c)
			}

			metrics.GateDecisionsTotal.WithLabelValues("redirect").Inc()
			return c.Redirect(http.StatusSeeOther, redirectTarget(decision.Target, req, cfg.PreserveRedirect))
		}
	}
}

func redirectTarget(target string, req *http.Request, preserve bool) string {
	if !preserve || req.Method != http.MethodGet || req.URL.Path == target {
		return target
	}
	return target + "?redirect=" + url.QueryEscape(req.URL.RequestURI())
}
