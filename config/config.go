// ABOUTME: This file handles configuration for the marketplace client
// ABOUTME: Loads environment variables with defaults and validates the result

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the marketplace client.
type Config struct {
	ServiceName string
	LogLevel    string

	// API configuration
	API APIConfig

	// Token lifecycle configuration
	Tokens TokenConfig

	// Local storage configuration
	Storage StorageConfig
}

// APIConfig holds backend endpoint settings.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// TokenConfig holds the expiry margins used by the session manager.
type TokenConfig struct {
	// ExpirySkew is subtracted from every expiry check to absorb clock drift
	// between client and server.
	ExpirySkew time.Duration
	// ProactiveWindow is how long before expiry a still-valid access token is
	// refreshed in the background.
	ProactiveWindow time.Duration
}

// StorageConfig holds the on-disk layout of persisted session state.
type StorageConfig struct {
	// Dir is the directory holding the fallback token file and the session
	// data file. Defaults to a per-user config directory.
	Dir             string
	KeyringService  string
	KeyringAccount  string
	TokenFallback   string
	SessionDataFile string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is applied first when present; real environment
// variables win over its entries.
func LoadConfig() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnvOrDefault("SERVICE_NAME", "marketplace-client"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		API: APIConfig{
			BaseURL: getEnvOrDefault("KB_API_BASE_URL", "http://localhost:8087"),
			Timeout: getDurationOrDefault("KB_API_TIMEOUT", 30*time.Second),
		},

		Tokens: TokenConfig{
			ExpirySkew:      getDurationOrDefault("KB_TOKEN_EXPIRY_SKEW", 30*time.Second),
			ProactiveWindow: getDurationOrDefault("KB_TOKEN_REFRESH_WINDOW", 60*time.Second),
		},

		Storage: StorageConfig{
			Dir:            os.Getenv("KB_STORAGE_DIR"),
			KeyringService: getEnvOrDefault("KB_KEYRING_SERVICE", "kb_session_tokens"),
			KeyringAccount: getEnvOrDefault("KB_KEYRING_ACCOUNT", "kb_session"),
		},
	}

	if cfg.Storage.Dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user config directory: %w", err)
		}
		cfg.Storage.Dir = filepath.Join(base, "marketplace-client")
	}
	cfg.Storage.TokenFallback = filepath.Join(cfg.Storage.Dir, "kb_session_tokens_fallback.json")
	cfg.Storage.SessionDataFile = filepath.Join(cfg.Storage.Dir, "kb_session_data")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("KB_API_BASE_URL must be an absolute URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("KB_API_TIMEOUT must be positive")
	}

	if c.Tokens.ExpirySkew < 0 {
		return fmt.Errorf("KB_TOKEN_EXPIRY_SKEW must not be negative")
	}

	if c.Tokens.ProactiveWindow <= c.Tokens.ExpirySkew {
		return fmt.Errorf("KB_TOKEN_REFRESH_WINDOW (%s) must exceed KB_TOKEN_EXPIRY_SKEW (%s)",
			c.Tokens.ProactiveWindow, c.Tokens.ExpirySkew)
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationOrDefault parses a duration env var, accepting either a Go
// duration string ("45s") or a bare number of seconds ("45").
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
