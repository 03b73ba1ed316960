package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the rentwave CLI
// and the mock backend.
type Config struct {
	// Base URL of the marketplace API. Both the auth endpoints and the
	// domain endpoints live under it.
	APIURL string `env:"RENTWAVE_API_URL" envDefault:"http://localhost:8081"`

	// Environment controls log format and the Secure cookie attribute.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// LogLevel overrides the environment's default log level.
	LogLevel string `env:"RENTWAVE_LOG_LEVEL"`

	// Path of the bbolt state file. Empty means ~/.rentwave/state.db.
	StatePath string `env:"RENTWAVE_STATE_PATH"`

	// Client-side lifetime assumed for a freshly issued access token.
	AccessTokenTTL time.Duration `env:"RENTWAVE_ACCESS_TOKEN_TTL" envDefault:"1h"`

	// Per-request timeout of the HTTP client.
	HTTPTimeout time.Duration `env:"RENTWAVE_HTTP_TIMEOUT" envDefault:"30s"`

	// Mock backend settings.
	MockListenAddr      string        `env:"MOCK_LISTEN_ADDR" envDefault:":8081"`
	MockTokenMode       string        `env:"MOCK_TOKEN_MODE" envDefault:"static"`
	MockAccountsFile    string        `env:"MOCK_ACCOUNTS_FILE"`
	MockAccessTokenTTL  time.Duration `env:"MOCK_ACCESS_TOKEN_TTL" envDefault:"1h"`
	MockRefreshTokenTTL time.Duration `env:"MOCK_REFRESH_TOKEN_TTL" envDefault:"336h"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath != "" {
		abs, err := filepath.Abs(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
		}

		cfg.StatePath = abs
	}

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("RENTWAVE_API_URL must be an absolute URL, got %q", c.APIURL)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("RENTWAVE_API_URL must use http or https, got %q", u.Scheme)
	}

	// Cookies carrying the refresh token must not cross the network in
	// clear text outside local development.
	if c.IsProduction() && u.Scheme != "https" {
		return fmt.Errorf("RENTWAVE_API_URL must use https in production")
	}

	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("RENTWAVE_ACCESS_TOKEN_TTL must be positive")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("RENTWAVE_HTTP_TIMEOUT must be positive")
	}

	switch c.MockTokenMode {
	case "static", "random":
	default:
		return fmt.Errorf("MOCK_TOKEN_MODE must be static or random, got %q", c.MockTokenMode)
	}

	if c.MockAccessTokenTTL <= 0 || c.MockRefreshTokenTTL <= 0 {
		return fmt.Errorf("MOCK_ACCESS_TOKEN_TTL and MOCK_REFRESH_TOKEN_TTL must be positive")
	}

	if c.MockAccessTokenTTL > c.MockRefreshTokenTTL {
		return fmt.Errorf("MOCK_ACCESS_TOKEN_TTL must not exceed MOCK_REFRESH_TOKEN_TTL")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
