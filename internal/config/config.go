package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	AppPort       string `env:"APP_PORT"        envDefault:"8080"`
	AppEnv        string `env:"APP_ENV"         envDefault:"dev"`
	LogLevel      string `env:"LOG_LEVEL"       envDefault:"info"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"memory"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	AuthSecret   string        `env:"AUTH_SECRET"`
	SessionTTL   time.Duration `env:"SESSION_TTL"   envDefault:"720h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	GitHubClientID     string `env:"GITHUB_ID"`
	GitHubClientSecret string `env:"GITHUB_SECRET"`

	GoogleClientID     string `env:"GOOGLE_ID"`
	GoogleClientSecret string `env:"GOOGLE_SECRET"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("config: AUTH_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}

	switch c.DatabaseDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("config: DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

// GitHubEnabled reports whether both GitHub OAuth credentials are set.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GoogleEnabled reports whether both Google OAuth credentials are set.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// RedirectURL is the OAuth callback registered with a delegated provider.
func (c Config) RedirectURL(provider string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/api/auth/callback/" + provider
}
