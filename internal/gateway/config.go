package gateway

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the settings for the request gateway.
type Config struct {
	BaseURL   string
	TimeoutMs int // applied to requests whose context has no deadline; 0 disables it
	UserAgent string
	LogCalls  bool
}

// DefaultConfig returns a Config pointing at a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8000",
		TimeoutMs: 120000,
		UserAgent: "studygen-cli",
		LogCalls:  true,
	}
}

// LoadConfig reads gateway configuration from environment variables,
// falling back to defaults for any unset values.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("STUDYGEN_API_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("STUDYGEN_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.TimeoutMs = n
		}
	}
	if v := os.Getenv("STUDYGEN_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("STUDYGEN_LOG_CALLS"); v != "" {
		cfg.LogCalls, _ = strconv.ParseBool(v)
	}

	return cfg
}
