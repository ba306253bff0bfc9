package service

import (
	"time"

	"github.com/99minutos/admin-console/internal/core/domain"
)

const defaultUnauthenticatedRedirect = "/login"

// RouteGate decides whether a page request may proceed. The public route set
// is fixed at construction and only read afterwards, so a RouteGate is safe
// for concurrent use.
type RouteGate struct {
	public   map[string]struct{}
	redirect string
	now      func() time.Time
}

// NewRouteGate builds a gate. Public routes are matched exactly; blank entries
// are ignored. The redirect target is always public.
func NewRouteGate(publicRoutes []string, redirect string) *RouteGate {
	if redirect == "" {
		redirect = defaultUnauthenticatedRedirect
	}
	public := make(map[string]struct{}, len(publicRoutes)+1)
	for _, p := range publicRoutes {
		if p != "" {
			public[p] = struct{}{}
		}
	}
	public[redirect] = struct{}{}
	return &RouteGate{public: public, redirect: redirect, now: time.Now}
}

// IsPublic reports whether path is in the public route set.
func (g *RouteGate) IsPublic(path string) bool {
	_, ok := g.public[path]
	return ok
}

// Redirect is the fixed target for unauthenticated requests. The router serves
// the sign-in page there.
func (g *RouteGate) Redirect() string { return g.redirect }

// Authorize never fails: public paths and valid sessions are allowed, anything
// else is sent to the unauthenticated redirect.
func (g *RouteGate) Authorize(path string, sess *domain.Session) domain.Decision {
	if g.IsPublic(path) {
		return domain.Allow
	}
	if g.valid(sess) {
		return domain.Allow
	}
	return domain.RedirectTo(g.redirect)
}

func (g *RouteGate) valid(sess *domain.Session) bool {
	if sess == nil || sess.AccessToken == "" {
		return false
	}
	return sess.ExpiresAt.IsZero() || g.now().Before(sess.ExpiresAt)
}
