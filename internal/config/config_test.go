package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"RENTWAVE_API_URL",
		"ENVIRONMENT",
		"RENTWAVE_LOG_LEVEL",
		"RENTWAVE_STATE_PATH",
		"RENTWAVE_ACCESS_TOKEN_TTL",
		"RENTWAVE_HTTP_TIMEOUT",
		"MOCK_LISTEN_ADDR",
		"MOCK_TOKEN_MODE",
		"MOCK_ACCOUNTS_FILE",
		"MOCK_ACCESS_TOKEN_TTL",
		"MOCK_REFRESH_TOKEN_TTL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8081", cfg.APIURL)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.StatePath)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ":8081", cfg.MockListenAddr)
	assert.Equal(t, "static", cfg.MockTokenMode)
	assert.Equal(t, 14*24*time.Hour, cfg.MockRefreshTokenTTL)
}

func TestLoad_Custom(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("RENTWAVE_API_URL", "https://api.rentwave.example")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RENTWAVE_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("MOCK_TOKEN_MODE", "random")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, "random", cfg.MockTokenMode)
}

func TestLoad_ResolvesRelativeStatePath(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("RENTWAVE_STATE_PATH", "relative/state.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.StatePath))
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("RENTWAVE_HTTP_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIURL:              "http://localhost:8081",
			Environment:         "development",
			AccessTokenTTL:      time.Hour,
			HTTPTimeout:         30 * time.Second,
			MockTokenMode:       "static",
			MockAccessTokenTTL:  time.Hour,
			MockRefreshTokenTTL: 14 * 24 * time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.APIURL = "/api" }, "absolute URL"},
		{"bad scheme", func(c *Config) { c.APIURL = "ftp://host" }, "http or https"},
		{"http in production", func(c *Config) { c.Environment = "production" }, "https in production"},
		{"zero ttl", func(c *Config) { c.AccessTokenTTL = 0 }, "RENTWAVE_ACCESS_TOKEN_TTL"},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, "RENTWAVE_HTTP_TIMEOUT"},
		{"unknown mode", func(c *Config) { c.MockTokenMode = "jwt" }, "MOCK_TOKEN_MODE"},
		{"access outlives refresh", func(c *Config) { c.MockAccessTokenTTL = 30 * 24 * time.Hour }, "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Environment: "production"}).IsProduction())
	assert.False(t, (&Config{Environment: "development"}).IsProduction())
}
