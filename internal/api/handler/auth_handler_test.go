package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/api/i18n"
	"github.com/99minutos/admin-console/internal/api/middleware"
	"github.com/99minutos/admin-console/internal/core/domain"
)

type stubAuthService struct {
	loginFn          func(ctx context.Context, phone, password string) (*domain.Session, string, error)
	refreshSessionFn func(ctx context.Context, s *domain.Session) (*domain.Session, string, error)
	reloadProfileFn  func(ctx context.Context, s *domain.Session) (*domain.Session, string, error)

	loggedOut []*domain.Session
}

func (s *stubAuthService) Authenticate(context.Context, string, string) (domain.TokenPair, error) {
	return domain.TokenPair{}, errors.New("not used")
}

func (s *stubAuthService) FetchProfile(context.Context, string) (*domain.Profile, bool) {
	return nil, false
}

func (s *stubAuthService) Login(ctx context.Context, phone, password string) (*domain.Session, string, error) {
	return s.loginFn(ctx, phone, password)
}

func (s *stubAuthService) Refresh(context.Context, string) (domain.TokenPair, error) {
	return domain.TokenPair{}, errors.New("not used")
}

func (s *stubAuthService) RefreshSession(ctx context.Context, current *domain.Session) (*domain.Session, string, error) {
	return s.refreshSessionFn(ctx, current)
}

func (s *stubAuthService) ReloadProfile(ctx context.Context, current *domain.Session) (*domain.Session, string, error) {
	return s.reloadProfileFn(ctx, current)
}

func (s *stubAuthService) Logout(_ context.Context, current *domain.Session) error {
	s.loggedOut = append(s.loggedOut, current)
	return nil
}

func newTestEcho(t *testing.T) (*echo.Echo, *i18n.Translator) {
	t.Helper()
	e := echo.New()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	e.Validator = v
	r, err := NewTemplateRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	e.Renderer = r
	tr, err := i18n.New("en", v.Engine())
	if err != nil {
		t.Fatalf("i18n: %v", err)
	}
	return e, tr
}

func newTestHandler(t *testing.T, stub *stubAuthService) (*echo.Echo, *AuthHandler) {
	t.Helper()
	e, tr := newTestEcho(t)
	h := NewAuthHandler(stub, middleware.SessionCookie{Name: "admin_session"}, tr,
		AuthRoutes{Login: "/login", Landing: "/dashboard"}, zerolog.Nop())
	return e, h
}

func sampleSession() *domain.Session {
	return domain.NewSession("sid-1",
		domain.Profile{ID: 1, FirstName: "A", LastName: "B", Roles: []string{domain.RoleAdmin}},
		domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"},
		time.Now(), time.Hour)
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func loginOK(_ context.Context, phone, password string) (*domain.Session, string, error) {
	if phone == "0912345678" && password == "correct" {
		return sampleSession(), "signed-artifact", nil
	}
	return nil, "", domain.ErrInvalidCredentials
}

func TestAuthHandler_LoginSubmit_Success(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{loginFn: loginOK})

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/login", url.Values{
		"phoneNumber": {"0912345678"}, "password": {"correct"}, "redirect": {"/orders?page=2"},
	}), rec)

	if err := h.LoginSubmit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/orders?page=2" {
		t.Fatalf("unexpected Location: %s", loc)
	}
	if sc := rec.Header().Get("Set-Cookie"); !strings.Contains(sc, "admin_session=signed-artifact") || !strings.Contains(sc, "HttpOnly") {
		t.Fatalf("session cookie not set: %q", sc)
	}
}

func TestAuthHandler_LoginSubmit_RejectsOpenRedirect(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{loginFn: loginOK})

	for _, target := range []string{"//evil.example.com", "https://evil.example.com", "/\\evil.example.com", "javascript:alert(1)", "/login"} {
		rec := httptest.NewRecorder()
		c := e.NewContext(formRequest("/login", url.Values{
			"phoneNumber": {"0912345678"}, "password": {"correct"}, "redirect": {target},
		}), rec)

		if err := h.LoginSubmit(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if loc := rec.Header().Get("Location"); loc != "/dashboard" {
			t.Fatalf("redirect %q: expected /dashboard, got %s", target, loc)
		}
	}
}

func TestAuthHandler_LoginSubmit_InvalidCredentialsRerendersForm(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{loginFn: loginOK})

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/login", url.Values{
		"phoneNumber": {"0912345678"}, "password": {"wrong"},
	}), rec)

	if err := h.LoginSubmit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Incorrect phone number or password.") {
		t.Fatalf("expected localized error in body")
	}
	if !strings.Contains(body, `value="0912345678"`) {
		t.Fatalf("expected phone number to be kept in the form")
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Fatalf("no cookie expected on failure")
	}
}

func TestAuthHandler_LoginSubmit_Localized(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{loginFn: loginOK})

	req := formRequest("/login", url.Values{"phoneNumber": {"0912345678"}, "password": {"wrong"}})
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9")
	rec := httptest.NewRecorder()

	if err := h.LoginSubmit(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Số điện thoại hoặc mật khẩu không đúng.") {
		t.Fatalf("expected Vietnamese message, got %s", rec.Body.String())
	}
}

func TestAuthHandler_LoginSubmit_ValidationSkipsBackend(t *testing.T) {
	stub := &stubAuthService{loginFn: func(context.Context, string, string) (*domain.Session, string, error) {
		t.Fatalf("Login must not be called for invalid input")
		return nil, "", nil
	}}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/login", url.Values{"password": {"x"}}), rec)

	if err := h.LoginSubmit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_LoginSubmit_ProfileUnavailable(t *testing.T) {
	stub := &stubAuthService{loginFn: func(context.Context, string, string) (*domain.Session, string, error) {
		return nil, "", domain.ErrProfileUnavailable
	}}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/login", url.Values{"phoneNumber": {"0912345678"}, "password": {"correct"}}), rec)

	if err := h.LoginSubmit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Fatalf("no cookie expected when the profile is unavailable")
	}
}

func TestAuthHandler_LoginPage(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/login?error=refresh_failed&redirect=/orders", nil), rec)
	if err := h.LoginPage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "Something went wrong. Please sign in again.") {
		t.Fatalf("expected login form with refresh error, got %d", rec.Code)
	}
	if !strings.Contains(body, `name="redirect" value="/orders"`) {
		t.Fatalf("redirect not carried into the form")
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/login?error=<script>", nil), rec)
	if err := h.LoginPage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.Contains(rec.Body.String(), "<script>") || strings.Contains(rec.Body.String(), `class="error"`) {
		t.Fatalf("unknown error keys must not be rendered")
	}
}

func TestAuthHandler_LoginPage_SignedInRedirects(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/login", nil), rec)
	middleware.SetSession(c, sampleSession())

	if err := h.LoginPage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected 303 to /dashboard, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAuthHandler_RefreshPage_Success(t *testing.T) {
	stub := &stubAuthService{refreshSessionFn: func(_ context.Context, s *domain.Session) (*domain.Session, string, error) {
		return domain.AccessTokenPatch("a2").Apply(s), "refreshed-artifact", nil
	}}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/refresh?redirect=/orders", nil), rec)
	middleware.SetSession(c, sampleSession())

	if err := h.RefreshPage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Header().Get("Location") != "/orders" {
		t.Fatalf("unexpected Location: %s", rec.Header().Get("Location"))
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "admin_session=refreshed-artifact") {
		t.Fatalf("refreshed cookie not set")
	}
}

func TestAuthHandler_RefreshPage_FailureClearsSession(t *testing.T) {
	stub := &stubAuthService{refreshSessionFn: func(context.Context, *domain.Session) (*domain.Session, string, error) {
		return nil, "", domain.ErrRefreshFailed
	}}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/refresh?redirect=/orders", nil), rec)
	middleware.SetSession(c, sampleSession())

	if err := h.RefreshPage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?redirect=%2Forders" {
		t.Fatalf("unexpected Location: %s", loc)
	}
	if len(stub.loggedOut) != 1 {
		t.Fatalf("expected session to be cleared")
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("expected cookie to be cleared")
	}
}

func TestAuthHandler_RefreshPage_NoSession(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/refresh", nil), rec)

	if err := h.RefreshPage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Header().Get("Location") != "/login" {
		t.Fatalf("unexpected Location: %s", rec.Header().Get("Location"))
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	stub := &stubAuthService{}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/logout", nil), rec)
	sess := sampleSession()
	middleware.SetSession(c, sess)

	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if len(stub.loggedOut) != 1 || stub.loggedOut[0] != sess {
		t.Fatalf("expected Logout with the request session")
	}
}

func TestAuthHandler_APILogin(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{loginFn: loginOK})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"phoneNumber":"0912345678","password":"correct"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.APILogin(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["name"] != "A B" {
		t.Fatalf("unexpected name: %v", resp["name"])
	}
	if _, leaked := resp["access_token"]; leaked {
		t.Fatalf("tokens must not be returned to the browser")
	}
}

func TestAuthHandler_APILogin_Failure(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{loginFn: loginOK})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"phoneNumber":"0912345678","password":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.APILogin(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if he.Message != "Incorrect phone number or password." {
		t.Fatalf("unexpected message: %v", he.Message)
	}
}

func TestAuthHandler_APISession(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), httptest.NewRecorder())
	if err := h.APISession(c); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), rec)
	middleware.SetSession(c, sampleSession())
	if err := h.APISession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"roles":["ADMIN"]`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAuthHandler_APIRefresh_FailureClearsCookie(t *testing.T) {
	stub := &stubAuthService{refreshSessionFn: func(context.Context, *domain.Session) (*domain.Session, string, error) {
		return nil, "", domain.ErrRefreshFailed
	}}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), rec)
	middleware.SetSession(c, sampleSession())

	err := h.APIRefresh(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("expected cookie to be cleared")
	}
}

func TestAuthHandler_APIReloadProfile(t *testing.T) {
	stub := &stubAuthService{reloadProfileFn: func(_ context.Context, s *domain.Session) (*domain.Session, string, error) {
		return domain.ProfilePatch(domain.Profile{FirstName: "C", LastName: "D"}).Apply(s), "reloaded", nil
	}}
	e, h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/auth/profile", nil), rec)
	middleware.SetSession(c, sampleSession())

	if err := h.APIReloadProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"name":"C D"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if got := middleware.SessionFrom(c); got == nil || got.Name != "C D" {
		t.Fatalf("request session not replaced")
	}
}

func TestIsLocalPath(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"/orders", true},
		{"/orders?page=2#top", true},
		{"", false},
		{"orders", false},
		{"//evil.example.com", false},
		{"/\\evil.example.com", false},
		{"https://evil.example.com/x", false},
	}
	for _, tc := range cases {
		if got := isLocalPath(tc.in); got != tc.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAuthHandler_LoginThrottled(t *testing.T) {
	e, h := newTestHandler(t, &stubAuthService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/login", url.Values{"phoneNumber": {"0912345678"}, "password": {"x"}}), rec)

	if err := h.LoginThrottled(c, "192.0.2.1", nil); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Too many attempts. Please wait a moment.") {
		t.Fatalf("expected throttling message")
	}
}
