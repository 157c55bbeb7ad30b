// Package config loads runtime settings and builds the shared logger and
// redis client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config holds the server settings. Command-line flags override it in main.
type Config struct {
	Port      string
	DBPath    string
	RedisAddr string // empty disables the slot guard
	LogLevel  logrus.Level

	VigilanceThreshold   decimal.Decimal
	FiscalYearStartMonth time.Month
	AlertSweepInterval   time.Duration // 0 disables the sweeper
}

// Load reads the environment, after loading .env when present.
func Load() (Config, error) {
	// Missing .env is fine: the environment may be set by the platform.
	_ = godotenv.Load()

	cfg := Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("DB_PATH", "./data/formation.db"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	cfg.VigilanceThreshold, err = decimal.NewFromString(getEnv("VIGILANCE_THRESHOLD", "80"))
	if err != nil {
		return Config{}, fmt.Errorf("VIGILANCE_THRESHOLD: %w", err)
	}
	if cfg.VigilanceThreshold.IsNegative() {
		return Config{}, fmt.Errorf("VIGILANCE_THRESHOLD must not be negative, got %s", cfg.VigilanceThreshold)
	}

	month, err := strconv.Atoi(getEnv("FISCAL_YEAR_START_MONTH", "1"))
	if err != nil || month < 1 || month > 12 {
		return Config{}, fmt.Errorf("FISCAL_YEAR_START_MONTH must be 1-12, got %q", os.Getenv("FISCAL_YEAR_START_MONTH"))
	}
	cfg.FiscalYearStartMonth = time.Month(month)

	cfg.AlertSweepInterval, err = time.ParseDuration(getEnv("ALERT_SWEEP_INTERVAL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("ALERT_SWEEP_INTERVAL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
