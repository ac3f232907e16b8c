package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/flowup/shared/cache"
	"github.com/vasapolrittideah/flowup/shared/mailer"
	"github.com/vasapolrittideah/flowup/shared/provider"
	"github.com/vasapolrittideah/flowup/shared/validation"
)

// Route paths shared by the identity client, the callback controller and the
// session guard.
const (
	LoginPath    = "/auth/login"
	CallbackPath = "/auth/callback"
	LogoutPath   = "/auth/logout"
)

// WebConfig is the configuration of the web service, read from the environment.
type WebConfig struct {
	Env        string `env:"APP_ENV"      envDefault:"dev"                   validate:"oneof=dev prod test"`
	LogLevel   string `env:"LOG_LEVEL"    envDefault:"info"`
	HTTPAddr   string `env:"HTTP_ADDR"    envDefault:":3000"                 validate:"required"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000" validate:"required,http_url"`

	Auth    AuthConfig    `envPrefix:"AUTH_"`
	Session SessionConfig `envPrefix:"SESSION_"`
	Mongo   MongoConfig   `envPrefix:"MONGO_"`
	Cache   cache.Config  `envPrefix:"CACHE_"`
	SMTP    mailer.Config `envPrefix:"SMTP_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
}

// AuthConfig configures the identity client.
type AuthConfig struct {
	provider.Config

	// SignInReturnToPath is where users land after login when no returnTo was requested.
	SignInReturnToPath string        `env:"SIGN_IN_RETURN_TO_PATH" envDefault:"/d/workspaces" validate:"startswith=/"`
	TransactionTTL     time.Duration `env:"TRANSACTION_TTL"        envDefault:"10m"`
}

// SessionConfig configures the session cookie and its server-side record.
type SessionConfig struct {
	Secret       string        `env:"SECRET"        validate:"required,min=32"`
	TTL          time.Duration `env:"TTL"           envDefault:"168h"`
	CookieName   string        `env:"COOKIE_NAME"   envDefault:"flowup_session" validate:"required"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

// MongoConfig points at the document store.
type MongoConfig struct {
	URI      string        `env:"URI"      validate:"required"`
	Database string        `env:"DATABASE" envDefault:"flowup" validate:"required"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH"    envDefault:"/metrics"`
}

// NewWebConfig parses and validates the configuration from the environment.
func NewWebConfig() (*WebConfig, error) {
	cfg, err := env.ParseAs[WebConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *WebConfig) validate() error {
	if err := validation.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// BaseURL returns AppBaseURL without a trailing slash.
func (c *WebConfig) BaseURL() string {
	return strings.TrimSuffix(c.AppBaseURL, "/")
}

// CallbackURL is the absolute redirect_uri registered with the identity service.
func (c *WebConfig) CallbackURL() string {
	return c.BaseURL() + CallbackPath
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (c *WebConfig) SecureCookies() bool {
	if c.Session.CookieSecure {
		return true
	}
	u, err := url.Parse(c.AppBaseURL)
	return err == nil && u.Scheme == "https"
}
