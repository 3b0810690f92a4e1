package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("COURSE_FILE", "course.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "@every 30s", cfg.CronSpecLMSFlush)
	assert.Equal(t, "*/10 * * * *", cfg.CronSpecSessionSweep)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdleTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 0.3, cfg.SectionVisibilityThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.MediaStartDelay)
	assert.Equal(t, 700*time.Millisecond, cfg.TOCSettleDelay)
	assert.Equal(t, 30, cfg.PendingLookupAttempts)
	assert.Equal(t, 80*time.Millisecond, cfg.PendingLookupInterval)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_IDLE_TIMEOUT", "45m")
	t.Setenv("SECTION_VISIBILITY_THRESHOLD", "0.5")
	t.Setenv("TOC_SETTLE_DELAY", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 45*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 0.5, cfg.SectionVisibilityThreshold)
	assert.Equal(t, time.Second, cfg.TOCSettleDelay)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{name: "missing token", env: map[string]string{"TELEGRAM_TOKEN": ""}, msg: "TELEGRAM_TOKEN"},
		{name: "missing course", env: map[string]string{"COURSE_FILE": ""}, msg: "COURSE_FILE"},
		{name: "bad redis db", env: map[string]string{"REDIS_DB": "one"}, msg: "REDIS_DB"},
		{name: "bad duration", env: map[string]string{"SESSION_TTL": "tomorrow"}, msg: "SESSION_TTL"},
		{name: "threshold out of range", env: map[string]string{"SECTION_VISIBILITY_THRESHOLD": "1.5"}, msg: "SECTION_VISIBILITY_THRESHOLD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
