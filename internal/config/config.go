// package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// server
	HTTPPort int

	// store
	DatabasePath string

	// platform
	PlatformBaseURL string

	// scraping
	PageDelayMs           int
	DatasetTimeoutSeconds int

	// nats (empty disables event publishing)
	NatsURL string

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:              getEnvInt("HTTP_PORT", 8000),
		DatabasePath:          getEnv("DATABASE_PATH", "data/chanvault.db"),
		PlatformBaseURL:       getEnv("PLATFORM_BASE_URL", "https://discord.com/api/v9"),
		PageDelayMs:           getEnvInt("PAGE_DELAY_MS", 500),
		DatasetTimeoutSeconds: getEnvInt("DATASET_TIMEOUT_SECONDS", 300),
		NatsURL:               getEnv("NATS_URL", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
