package api

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/service"
	"github.com/99minutos/admin-console/internal/infrastructure/config"
	"github.com/99minutos/admin-console/internal/infrastructure/session"
)

// fakeBackend accepts password "correct"; the phone number picks the role.
type fakeBackend struct{}

func (fakeBackend) SignIn(_ context.Context, creds domain.Credentials) (domain.TokenPair, error) {
	if creds.Password != "correct" {
		return domain.TokenPair{}, errors.New("rejected")
	}
	return domain.TokenPair{AccessToken: "access-" + creds.PhoneNumber, RefreshToken: "refresh-" + creds.PhoneNumber}, nil
}

func (fakeBackend) Profile(_ context.Context, accessToken string) (*domain.Profile, error) {
	role := domain.RoleAdmin
	if strings.HasSuffix(accessToken, "0900000002") {
		role = domain.RoleStaff
	}
	return &domain.Profile{ID: 7, FirstName: "Ada", LastName: "Lovelace", Roles: []string{role}}, nil
}

func (fakeBackend) Refresh(_ context.Context, refreshToken string) (domain.TokenPair, error) {
	return domain.TokenPair{AccessToken: "renewed"}, nil
}

type upstreamCall struct {
	path string
	auth string
}

func newTestRouter(t *testing.T, opts ...func(*config.Config)) (*echo.Echo, *upstreamCall) {
	t.Helper()

	seen := &upstreamCall{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		Env:           "test",
		DefaultLocale: "en",
		Session: config.SessionConfig{
			Secret:     "0123456789abcdef0123456789abcdef",
			CookieName: "admin_session",
			TTL:        time.Hour,
		},
		Backend: config.BackendConfig{APIURL: upstream.URL + "/api", Timeout: time.Second},
		Gate: config.GateConfig{
			PublicRoutes:     []string{"/login", "/refresh"},
			ExcludedPrefixes: []string{"/api/", "/metrics", "/health", "/swagger/"},
			Redirect:         "/login",
			DefaultLanding:   "/dashboard",
			PreserveRedirect: true,
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	codec, err := session.NewJWTCodec([]byte(cfg.Session.Secret))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	revoked := session.NewMemoryRevocationList()
	t.Cleanup(revoked.Stop)

	log := zerolog.Nop()
	store := service.NewSessionStore(codec, revoked, cfg.Session.TTL, log)
	authService := service.NewAuthService(fakeBackend{}, store, nil, log)

	e, err := NewRouter(Dependencies{
		Config:      cfg,
		Log:         log,
		AuthService: authService,
		Sessions:    store,
		Gate:        service.NewRouteGate(cfg.Gate.PublicRoutes, cfg.Gate.Redirect),
		Metrics:     prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return e, seen
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signIn(t *testing.T, e *echo.Echo, phone string) *http.Cookie {
	t.Helper()
	form := url.Values{"phoneNumber": {phone}, "password": {"correct"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	rec := serve(e, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "admin_session" && ck.Value != "" {
			return ck
		}
	}
	t.Fatalf("login: no session cookie")
	return nil
}

func TestRouter_AnonymousPageRedirectsToLogin(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/dashboard?tab=2", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?redirect=%2Fdashboard%3Ftab%3D2" {
		t.Fatalf("unexpected Location: %s", loc)
	}
}

func TestRouter_PublicAndExcludedRoutes(t *testing.T) {
	e, _ := newTestRouter(t)

	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/login", nil)); rec.Code != http.StatusOK {
		t.Fatalf("/login: expected 200, got %d", rec.Code)
	}
	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("/health: expected 200, got %d", rec.Code)
	}
}

func TestRouter_LoginThenBrowse(t *testing.T) {
	e, _ := newTestRouter(t)
	ck := signIn(t, e, "0900000001")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(ck)
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ada Lovelace") {
		t.Fatalf("expected the signed-in user's name")
	}
}

func TestRouter_SessionEndpoint(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Code != "no_session" {
		t.Fatalf("unexpected code: %q", body.Code)
	}

	ck := signIn(t, e, "0900000001")
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(ck)
	rec = serve(e, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"Ada Lovelace"`) {
		t.Fatalf("unexpected session response: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "access-") {
		t.Fatalf("tokens leaked to the browser")
	}
}

func TestRouter_ProxyAddsBearer(t *testing.T) {
	e, seen := newTestRouter(t)
	ck := signIn(t, e, "0900000001")

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(ck)
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if seen.path != "/api/orders" || seen.auth != "Bearer access-0900000001" {
		t.Fatalf("unexpected upstream call: %+v", seen)
	}
}

func TestRouter_ProxyRequiresSession(t *testing.T) {
	e, seen := newTestRouter(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if seen.path != "" {
		t.Fatalf("anonymous request reached the upstream")
	}
}

func TestRouter_UsersRequireAdmin(t *testing.T) {
	e, _ := newTestRouter(t)
	ck := signIn(t, e, "0900000002")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(ck)
	rec := serve(e, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_LogoutRevokesArtifact(t *testing.T) {
	e, _ := newTestRouter(t)
	ck := signIn(t, e, "0900000001")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(ck)
	if rec := serve(e, req); rec.Code != http.StatusSeeOther {
		t.Fatalf("logout: expected 303, got %d", rec.Code)
	}

	// A copy of the old cookie no longer opens the dashboard.
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(ck)
	rec := serve(e, req)
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/login") {
		t.Fatalf("expected redirect to login, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRouter_UnknownFailureIsGeneric(t *testing.T) {
	e, _ := newTestRouter(t)
	e.GET("/api/boom", func(echo.Context) error { return errors.New("database password leaked") })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestRouter_LoginIsRateLimited(t *testing.T) {
	e, _ := newTestRouter(t, func(cfg *config.Config) { cfg.LoginRateLimit = 10 })

	attempt := func() *httptest.ResponseRecorder {
		form := url.Values{"phoneNumber": {"0900000001"}, "password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		return serve(e, req)
	}

	if rec := attempt(); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt: expected 401, got %d", rec.Code)
	}
	rec := attempt()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Too many attempts") {
		t.Fatalf("expected the throttled login form")
	}
}

func TestRouter_LoginPageFollowsGateRedirect(t *testing.T) {
	e, _ := newTestRouter(t, func(cfg *config.Config) {
		cfg.Gate.PublicRoutes = []string{"/refresh"}
		cfg.Gate.Redirect = "/signin"
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin?redirect=%2Fdashboard" {
		t.Fatalf("expected redirect to /signin, got %d %s", rec.Code, rec.Header().Get("Location"))
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/signin", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/signin: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/signin"`) {
		t.Fatalf("expected the form to post back to /signin")
	}

	form := url.Values{"phoneNumber": {"0900000001"}, "password": {"correct"}}
	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if rec := serve(e, req); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("sign-in: expected 303 to /dashboard, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
}
