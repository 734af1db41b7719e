// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel string

	// Bank gateway settings.
	BankBaseURL    string
	BankClientGUID string
	BankTimeout    time.Duration

	// Cron schedule for the nightly ledger reconciliation audit.
	ReconcileSchedule string
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	bankBaseURL := os.Getenv("BANK_BASE_URL")
	if bankBaseURL == "" {
		return nil, fmt.Errorf("BANK_BASE_URL environment variable is required")
	}

	bankClientGUID := os.Getenv("BANK_CLIENT_GUID")
	if bankClientGUID == "" {
		return nil, fmt.Errorf("BANK_CLIENT_GUID environment variable is required")
	}

	timeout := 15 * time.Second
	if raw := os.Getenv("BANK_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("BANK_TIMEOUT_SECONDS must be a positive integer, got %q", raw)
		}
		timeout = time.Duration(secs) * time.Second
	}

	return &Config{
		DBSource:          dbSource,
		Port:              getEnv("SERVER_PORT", "8080"),
		Env:               getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		BankBaseURL:       bankBaseURL,
		BankClientGUID:    bankClientGUID,
		BankTimeout:       timeout,
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "0 3 * * *"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
