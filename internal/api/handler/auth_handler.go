package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/api/i18n"
	"github.com/99minutos/admin-console/internal/api/middleware"
	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
)

// AuthRoutes are the navigation targets of the session pages.
type AuthRoutes struct {
	Login   string
	Landing string
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      middleware.SessionCookie
	i18n        *i18n.Translator
	routes      AuthRoutes
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, cookie middleware.SessionCookie, tr *i18n.Translator, routes AuthRoutes, log zerolog.Logger) *AuthHandler {
	if routes.Login == "" {
		routes.Login = "/login"
	}
	if routes.Landing == "" {
		routes.Landing = "/"
	}
	return &AuthHandler{authService: authService, cookie: cookie, i18n: tr, routes: routes, log: log}
}

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber" validate:"required,min=6,max=20"`
	Password    string `json:"password" form:"password" validate:"required,max=128"`
	Redirect    string `json:"redirect" form:"redirect" query:"redirect"`
}

// sessionResponse is the public view of a session. Tokens are never exposed.
type sessionResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email,omitempty"`
	Image     string    `json:"image,omitempty"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		Name:      s.Name,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Image:     s.Image,
		Roles:     s.Roles,
		ExpiresAt: s.ExpiresAt,
	}
}

type loginPageData struct {
	Action        string
	Locale        string
	Title         string
	PhoneLabel    string
	PasswordLabel string
	Submit        string
	Error         string
	Redirect      string
	PhoneNumber   string
}

// knownMessages are the error keys accepted from the ?error= query parameter.
var knownMessages = map[string]struct{}{
	i18n.KeyInvalidCredentials: {},
	i18n.KeyProfileUnavailable: {},
	i18n.KeyRefreshFailed:      {},
	i18n.KeyNoSession:          {},
	i18n.KeyTooManyRequests:    {},
}

// LoginPage renders the sign-in form. Signed-in users go straight to their
// destination.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	redirect := h.safeRedirect(c.QueryParam("redirect"))
	if middleware.SessionFrom(c) != nil {
		return c.Redirect(http.StatusSeeOther, redirect)
	}

	errMsg := ""
	if key := c.QueryParam("error"); key != "" {
		if _, ok := knownMessages[key]; ok {
			errMsg = h.i18n.Message(h.translator(c), key)
		}
	}
	return h.renderLogin(c, http.StatusOK, errMsg, c.QueryParam("redirect"), "")
}

// LoginSubmit handles the sign-in form. Failures re-render the form with a
// localized message; success sets the session cookie and redirects.
func (h *AuthHandler) LoginSubmit(c echo.Context) error {
	trans := h.translator(c)

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return h.renderLogin(c, http.StatusBadRequest, h.i18n.Message(trans, i18n.KeyInvalidCredentials), "", "")
	}
	if err := c.Validate(&req); err != nil {
		return h.renderLogin(c, http.StatusBadRequest, h.validationMessage(err, trans), req.Redirect, req.PhoneNumber)
	}

	sess, artifact, err := h.authService.Login(c.Request().Context(), req.PhoneNumber, req.Password)
	if err != nil {
		failure := domain.FailureOf(err)
		return h.renderLogin(c, statusFor(failure), h.i18n.Message(trans, failure.String()), req.Redirect, req.PhoneNumber)
	}

	h.cookie.Set(c, artifact, sess.ExpiresAt)
	return c.Redirect(http.StatusSeeOther, h.safeRedirect(req.Redirect))
}

// RefreshPage refreshes the access token and continues to ?redirect=. When the
// refresh fails the session is cleared and the user is sent to sign in.
func (h *AuthHandler) RefreshPage(c echo.Context) error {
	ctx := c.Request().Context()
	target := h.safeRedirect(c.QueryParam("redirect"))

	sess := middleware.SessionFrom(c)
	if sess == nil {
		return c.Redirect(http.StatusSeeOther, h.loginURL(target))
	}

	next, artifact, err := h.authService.RefreshSession(ctx, sess)
	if err != nil {
		h.endSession(c, sess)
		return c.Redirect(http.StatusSeeOther, h.loginURL(target))
	}

	h.cookie.Set(c, artifact, next.ExpiresAt)
	return c.Redirect(http.StatusSeeOther, target)
}

// Logout clears the session and returns to the sign-in page.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.endSession(c, middleware.SessionFrom(c))
	return c.Redirect(http.StatusSeeOther, h.routes.Login)
}

// APILogin signs in with a JSON body.
//
// @Summary      Sign in
// @Description  Exchanges a phone number and password for a session cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) APILogin(c echo.Context) error {
	trans := h.translator(c)

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, h.validationMessage(err, trans))
	}

	sess, artifact, err := h.authService.Login(c.Request().Context(), req.PhoneNumber, req.Password)
	if err != nil {
		return h.failure(err, trans)
	}

	h.cookie.Set(c, artifact, sess.ExpiresAt)
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// APIRefresh refreshes the session's access token.
//
// @Summary      Refresh the session
// @Description  Mints a new access token with the session's refresh token. On failure the session is cleared.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) APIRefresh(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	next, artifact, err := h.authService.RefreshSession(c.Request().Context(), sess)
	if err != nil {
		h.endSession(c, sess)
		return h.failure(err, h.translator(c))
	}

	h.cookie.Set(c, artifact, next.ExpiresAt)
	middleware.SetSession(c, next)
	return c.JSON(http.StatusOK, toSessionResponse(next))
}

// APIReloadProfile re-fetches the profile into the session. Roles are kept.
//
// @Summary      Reload the profile
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/auth/profile [post]
func (h *AuthHandler) APIReloadProfile(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	next, artifact, err := h.authService.ReloadProfile(c.Request().Context(), sess)
	if err != nil {
		return h.failure(err, h.translator(c))
	}

	h.cookie.Set(c, artifact, next.ExpiresAt)
	middleware.SetSession(c, next)
	return c.JSON(http.StatusOK, toSessionResponse(next))
}

// APISession returns the current session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/session [get]
func (h *AuthHandler) APISession(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// APILogout clears the session.
//
// @Summary      Sign out
// @Tags         auth
// @Success      204
// @Router       /api/auth/logout [post]
func (h *AuthHandler) APILogout(c echo.Context) error {
	h.endSession(c, middleware.SessionFrom(c))
	return c.NoContent(http.StatusNoContent)
}

// LoginThrottled re-renders the sign-in form when the login rate limit is hit.
func (h *AuthHandler) LoginThrottled(c echo.Context, _ string, _ error) error {
	msg := h.i18n.Message(h.translator(c), i18n.KeyTooManyRequests)
	return h.renderLogin(c, http.StatusTooManyRequests, msg, c.FormValue("redirect"), c.FormValue("phoneNumber"))
}

// APIThrottled is LoginThrottled for JSON clients.
func (h *AuthHandler) APIThrottled(c echo.Context, _ string, _ error) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, h.i18n.Message(h.translator(c), i18n.KeyTooManyRequests))
}

func (h *AuthHandler) endSession(c echo.Context, sess *domain.Session) {
	if err := h.authService.Logout(c.Request().Context(), sess); err != nil {
		h.log.Warn().Err(err).Msg("session revocation failed, dropping cookie anyway")
	}
	h.cookie.Clear(c)
}

func (h *AuthHandler) renderLogin(c echo.Context, status int, errMsg, redirect, phone string) error {
	trans := h.translator(c)
	return c.Render(status, "login.html", loginPageData{
		Action:        h.routes.Login,
		Locale:        trans.Locale(),
		Title:         h.i18n.Message(trans, i18n.KeyLoginTitle),
		PhoneLabel:    h.i18n.Message(trans, i18n.KeyPhoneLabel),
		PasswordLabel: h.i18n.Message(trans, i18n.KeyPasswordLabel),
		Submit:        h.i18n.Message(trans, i18n.KeySubmit),
		Error:         errMsg,
		Redirect:      redirect,
		PhoneNumber:   phone,
	})
}

func (h *AuthHandler) translator(c echo.Context) ut.Translator {
	return h.i18n.For(c.Request().Header.Get("Accept-Language"))
}

func (h *AuthHandler) validationMessage(err error, trans ut.Translator) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Localize(trans)
	}
	return h.i18n.Message(trans, i18n.KeyInvalidCredentials)
}

// failure renders a domain error as a localized HTTP error.
func (h *AuthHandler) failure(err error, trans ut.Translator) error {
	f := domain.FailureOf(err)
	return echo.NewHTTPError(statusFor(f), h.i18n.Message(trans, f.String())).SetInternal(err)
}

func statusFor(f domain.Failure) int {
	switch f {
	case domain.FailureInvalidCredentials, domain.FailureRefresh, domain.FailureNoSession:
		return http.StatusUnauthorized
	case domain.FailureProfileUnavailable:
		return http.StatusBadGateway
	case domain.FailureForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// safeRedirect only accepts local absolute paths; anything else falls back to
// the landing page.
func (h *AuthHandler) safeRedirect(raw string) string {
	if !isLocalPath(raw) {
		return h.routes.Landing
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == h.routes.Login {
		return h.routes.Landing
	}
	return raw
}

func isLocalPath(raw string) bool {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func (h *AuthHandler) loginURL(redirect string) string {
	if redirect == "" || redirect == h.routes.Landing {
		return h.routes.Login
	}
	return h.routes.Login + "?" + url.Values{"redirect": {redirect}}.Encode()
}
