package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"

	_ "github.com/99minutos/admin-console/docs"
	"github.com/99minutos/admin-console/internal/api/handler"
	"github.com/99minutos/admin-console/internal/api/i18n"
	"github.com/99minutos/admin-console/internal/api/middleware"
	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
	"github.com/99minutos/admin-console/internal/infrastructure/config"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Config      *config.Config
	Log         zerolog.Logger
	AuthService ports.AuthService
	Sessions    middleware.SessionReader
	Gate        middleware.Authorizer
	// Transport is the base round tripper of the /api proxy. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper
	// Metrics receives the HTTP request metrics. Nil uses the default registry.
	Metrics prometheus.Registerer
	// Mongo and Redis are optional and only used by the readiness probe.
	Mongo *mongo.Database
	Redis *redis.Client
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) (*echo.Echo, error) {
	cfg := deps.Config
	log := deps.Log

	apiTarget, err := url.Parse(cfg.Backend.APIURL)
	if err != nil {
		return nil, fmt.Errorf("router: backend url: %w", err)
	}

	validator, err := handler.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	tr, err := i18n.New(cfg.DefaultLocale, validator.Engine())
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	renderer, err := handler.NewTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator
	e.Renderer = renderer
	e.HTTPErrorHandler = NewHTTPErrorHandler(tr, log)

	cookie := middleware.SessionCookie{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.RequestContext())
	e.Use(echomiddleware.Secure())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "admin_console",
		Subsystem:  "http",
		Registerer: deps.Metrics,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(middleware.LoadSession(deps.Sessions, cookie, log))
	e.Use(middleware.Gate(deps.Gate, middleware.GateConfig{
		ExcludedPrefixes: cfg.Gate.ExcludedPrefixes,
		PreserveRedirect: cfg.Gate.PreserveRedirect,
	}))

	// --- Dependencies ---
	loginPath := deps.Gate.Redirect()
	authHandler := handler.NewAuthHandler(deps.AuthService, cookie, tr, handler.AuthRoutes{
		Login:   loginPath,
		Landing: cfg.Gate.DefaultLanding,
	}, log)

	// Form and JSON sign-in share one budget per client.
	limits := newLoginLimits(cfg.LoginRateLimit)

	// --- Session pages ---
	e.GET(loginPath, authHandler.LoginPage)
	e.POST(loginPath, authHandler.LoginSubmit, limits.middleware(authHandler.LoginThrottled))
	e.GET("/refresh", authHandler.RefreshPage)
	e.POST("/logout", authHandler.Logout)

	// --- Session API ---
	auth := e.Group("/api/auth")
	auth.POST("/login", authHandler.APILogin, limits.middleware(authHandler.APIThrottled))
	auth.POST("/refresh", authHandler.APIRefresh, middleware.RequireSession())
	auth.POST("/profile", authHandler.APIReloadProfile, middleware.RequireSession())
	auth.GET("/session", authHandler.APISession, middleware.RequireSession())
	auth.POST("/logout", authHandler.APILogout)

	// --- Remote REST API ---
	proxy := handler.NewAPIProxy(apiTarget, deps.Transport)
	e.Any("/api/users", proxy, middleware.RequireSession(), middleware.RBAC(domain.RoleAdmin))
	e.Any("/api/users/*", proxy, middleware.RequireSession(), middleware.RBAC(domain.RoleAdmin))
	e.Any("/api/*", proxy, middleware.RequireSession())

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness: is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are dependencies up?

	e.GET("/metrics", echoprometheus.NewHandler())
	if !cfg.IsProduction() {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// --- Dashboard pages ---
	e.GET("/*", handler.NewPagesHandler(cfg.PagesDir))

	return e, nil
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// loginLimits throttles sign-in attempts per client IP.
type loginLimits struct {
	store echomiddleware.RateLimiterStore
}

func newLoginLimits(perMinute int) loginLimits {
	if perMinute <= 0 {
		return loginLimits{}
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return loginLimits{
		store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(perMinute) / 60.0),
			Burst:     burst,
			ExpiresIn: 5 * time.Minute,
		}),
	}
}

func (l loginLimits) middleware(deny func(echo.Context, string, error) error) echo.MiddlewareFunc {
	if l.store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: l.store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: deny,
	})
}
