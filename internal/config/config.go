// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for local databases and cache snapshots (always absolute)

	// HTTP facade the browser UI talks to
	Host        string
	Port        int
	CORSOrigins []string

	// Remote backend the sync engine reconciles against
	APIBaseURL        string
	APIToken          string // Optional pre-set bearer token for headless use; normally set via the session endpoint
	RequestTimeoutSec int
	RateLimitRPS      int

	// Background jobs
	QuoteRefreshMinutes int
	SnapshotEnabled     bool
	SnapshotMinutes     int

	LogLevel  string
	LogPretty bool
	DevMode   bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check FOLIO_DATA_DIR environment variable
	// 2. If not set, default to ~/.foliosync
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("FOLIO_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, ".foliosync")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Host:                getEnv("SERVER_HOST", "127.0.0.1"),
		Port:                getEnvAsInt("SERVER_PORT", 8600),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		APIBaseURL:          getEnv("TRACKER_API_URL", "http://localhost:8000"),
		APIToken:            getEnv("TRACKER_API_TOKEN", ""),
		RequestTimeoutSec:   getEnvAsInt("TRACKER_API_TIMEOUT_SEC", 15),
		RateLimitRPS:        getEnvAsInt("TRACKER_API_RATE_LIMIT", 5),
		QuoteRefreshMinutes: getEnvAsInt("QUOTE_REFRESH_MINUTES", 2),
		SnapshotEnabled:     getEnvAsBool("CACHE_SNAPSHOT_ENABLED", true),
		SnapshotMinutes:     getEnvAsInt("CACHE_SNAPSHOT_MINUTES", 10),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvAsBool("LOG_PRETTY", true),
		DevMode:             getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Port)
	}

	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("invalid tracker API URL %q: %w", c.APIBaseURL, err)
	}

	return nil
}

// Addr returns the listen address for the HTTP facade.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
