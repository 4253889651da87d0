package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync server
type Config struct {
	DatabaseURL    string
	LogLevel       string
	PrometheusPort string
	Port           string
	MigrationsPath string
	AllowedOrigins []string
}

// ClientConfig holds all configuration for the sync client
type ClientConfig struct {
	APIURL         string
	WSURL          string
	DataDir        string
	LogLevel       string
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Load loads server configuration from environment variables, reading a .env
// file first when one is present
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		Port:           getEnvOrDefault("PORT", "3001"),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// LoadClient loads client configuration from environment variables
func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	cfg := &ClientConfig{
		APIURL:   strings.TrimRight(getEnvOrDefault("SYNCLIST_API_URL", "http://localhost:3001"), "/"),
		WSURL:    getEnvOrDefault("SYNCLIST_WS_URL", "ws://localhost:3001/ws"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	dataDir := os.Getenv("SYNCLIST_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".synclist")
	}
	cfg.DataDir = dataDir

	var err error
	if cfg.BackoffInitial, err = getDurationOrDefault("SYNCLIST_BACKOFF_INITIAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.BackoffMax, err = getDurationOrDefault("SYNCLIST_BACKOFF_MAX", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		return nil, fmt.Errorf("SYNCLIST_BACKOFF_MAX (%s) must not be lower than SYNCLIST_BACKOFF_INITIAL (%s)",
			cfg.BackoffMax, cfg.BackoffInitial)
	}

	return cfg, nil
}

// loadDotEnv reads .env into the environment. A missing file is not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
