package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const minSecretLength = 32

type Config struct {
	Port            string        `env:"PORT,             default=8080"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	DefaultLocale   string        `env:"DEFAULT_LOCALE,   default=en"`
	PagesDir        string        `env:"PAGES_DIR"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT, default=30"` // attempts per minute per IP, 0 disables
	AuditWorkers    int           `env:"AUDIT_WORKERS,    default=4"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Session SessionConfig
	Backend BackendConfig
	Gate    GateConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET,        required"`
	CookieName   string        `env:"SESSION_COOKIE_NAME,   default=admin_session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE, default=false"`
	TTL          time.Duration `env:"SESSION_TTL,           default=24h"`
}

type BackendConfig struct {
	APIURL     string        `env:"BACKEND_API_URL,     default=http://localhost:3001/api"`
	ProfileURL string        `env:"BACKEND_PROFILE_URL"`
	Timeout    time.Duration `env:"BACKEND_TIMEOUT,     default=15s"`
}

type GateConfig struct {
	PublicRoutes     []string `env:"PUBLIC_ROUTES,            default=/login,/refresh"`
	ExcludedPrefixes []string `env:"GATE_EXCLUDED_PREFIXES,   default=/api/,/static/,/images/,/_next/,/favicon.ico,/metrics,/health,/swagger/"`
	Redirect         string   `env:"UNAUTHENTICATED_REDIRECT, default=/login"`
	DefaultLanding   string   `env:"DEFAULT_LANDING,          default=/dashboard"`
	PreserveRedirect bool     `env:"GATE_PRESERVE_REDIRECT,   default=true"`
}

// MongoConfig is optional: an empty URI disables the audit collection.
type MongoConfig struct {
	URI            string        `env:"MONGO_URI"`
	Database       string        `env:"MONGO_DB,        default=admin_console"`
	AuditRetention time.Duration `env:"AUDIT_RETENTION, default=720h"`
}

// RedisConfig is optional: an empty address selects the in-memory revocation list.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ProfileEndpoint is BACKEND_PROFILE_URL, or {API}/users/profile when unset.
func (c *Config) ProfileEndpoint() string {
	if c.Backend.ProfileURL != "" {
		return c.Backend.ProfileURL
	}
	return strings.TrimRight(c.Backend.APIURL, "/") + "/users/profile"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Session.Secret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength)
	}
	if _, err := url.ParseRequestURI(c.Backend.APIURL); err != nil {
		return fmt.Errorf("BACKEND_API_URL: %w", err)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be positive")
	}
	if !strings.HasPrefix(c.Gate.Redirect, "/") {
		return errors.New("UNAUTHENTICATED_REDIRECT must be a local path")
	}
	if !slices.Contains(c.Gate.PublicRoutes, c.Gate.Redirect) {
		return fmt.Errorf("UNAUTHENTICATED_REDIRECT %q must be listed in PUBLIC_ROUTES", c.Gate.Redirect)
	}
	if !strings.HasPrefix(c.Gate.DefaultLanding, "/") {
		return errors.New("DEFAULT_LANDING must be a local path")
	}
	return nil
}
