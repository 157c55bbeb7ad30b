package config_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "DB_PATH", "REDIS_ADDR", "LOG_LEVEL", "VIGILANCE_THRESHOLD", "FISCAL_YEAR_START_MONTH", "ALERT_SWEEP_INTERVAL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/formation.db", cfg.DBPath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.True(t, cfg.VigilanceThreshold.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, time.January, cfg.FiscalYearStartMonth)
	assert.Equal(t, time.Hour, cfg.AlertSweepInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VIGILANCE_THRESHOLD", "72.5")
	t.Setenv("FISCAL_YEAR_START_MONTH", "9")
	t.Setenv("ALERT_SWEEP_INTERVAL", "0")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.VigilanceThreshold.Equal(decimal.RequireFromString("72.5")))
	assert.Equal(t, time.September, cfg.FiscalYearStartMonth)
	assert.Zero(t, cfg.AlertSweepInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LOG_LEVEL", "loud"},
		{"VIGILANCE_THRESHOLD", "high"},
		{"VIGILANCE_THRESHOLD", "-5"},
		{"FISCAL_YEAR_START_MONTH", "13"},
		{"ALERT_SWEEP_INTERVAL", "hourly"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()

			assert.Error(t, err)
		})
	}
}

func TestLogError_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := config.NewLogger(logrus.InfoLevel)
	logger.SetOutput(&buf)

	config.LogError(logger, "api", "handleBudget", "enterprise ent-1", map[string]int{"year": 2025}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "api", entry["module"])
	assert.Equal(t, "handleBudget", entry["funcName"])
	assert.Equal(t, "enterprise ent-1", entry["context"])
	assert.NotNil(t, entry["data"])
}

func TestConnectRedis(t *testing.T) {
	logger := config.NewLogger(logrus.PanicLevel)
	ctx := context.Background()

	assert.Nil(t, config.ConnectRedis(ctx, logger, "", 3), "empty address disables redis")

	mr := miniredis.RunT(t)
	rdb := config.ConnectRedis(ctx, logger, mr.Addr(), 1)
	require.NotNil(t, rdb)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(ctx).Err())
}
