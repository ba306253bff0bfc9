package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/core/domain"
)

const sessionKey = "session"

// SessionReader is the read side of the session store.
type SessionReader interface {
	Get(ctx context.Context, artifact string) (*domain.Session, error)
}

// SessionCookie describes the HttpOnly cookie carrying the session artifact.
type SessionCookie struct {
	Name   string
	Secure bool
}

// Read returns the raw artifact, or "" when the cookie is absent.
func (sc SessionCookie) Read(c echo.Context) string {
	ck, err := c.Cookie(sc.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// Set stores artifact until expires.
func (sc SessionCookie) Set(c echo.Context, artifact string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     sc.Name,
		Value:    artifact,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   sc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear tells the browser to drop the cookie.
func (sc SessionCookie) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sc.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFrom returns the session loaded for this request, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	sess, _ := c.Get(sessionKey).(*domain.Session)
	return sess
}

// SetSession replaces the request's session, e.g. after a refresh.
func SetSession(c echo.Context, sess *domain.Session) {
	c.Set(sessionKey, sess)
}

// LoadSession decodes the session cookie and exposes the result through
// SessionFrom. A cookie that no longer verifies is cleared; the request itself
// continues anonymously.
func LoadSession(store SessionReader, cookie SessionCookie, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			artifact := cookie.Read(c)
			if artifact == "" {
				return next(c)
			}

			sess, err := store.Get(c.Request().Context(), artifact)
			if err != nil {
				log.Debug().Str("path", c.Request().URL.Path).Msg("dropping unusable session cookie")
				cookie.Clear(c)
				return next(c)
			}

			SetSession(c, sess)
			return next(c)
		}
	}
}

// RequireSession rejects requests without a session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if SessionFrom(c) == nil {
				return domain.ErrSessionNotFound
			}
			return next(c)
		}
	}
}
