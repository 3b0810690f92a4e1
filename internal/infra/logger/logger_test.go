package logger

import (
	"testing"

	"course_runtime/internal/infra/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.AppConfig
		level     logrus.Level
		formatter logrus.Formatter
	}{
		{name: "production uses json", cfg: config.AppConfig{LogLevel: "debug", Environment: "production"}, level: logrus.DebugLevel, formatter: &logrus.JSONFormatter{}},
		{name: "staging uses json", cfg: config.AppConfig{LogLevel: "warn", Environment: "Staging"}, level: logrus.WarnLevel, formatter: &logrus.JSONFormatter{}},
		{name: "development uses text", cfg: config.AppConfig{LogLevel: "info", Environment: "development"}, level: logrus.InfoLevel, formatter: &logrus.TextFormatter{}},
		{name: "invalid level falls back to info", cfg: config.AppConfig{LogLevel: "loud", Environment: "development"}, level: logrus.InfoLevel, formatter: &logrus.TextFormatter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			Init(&cfg)
			assert.Equal(t, tt.level, Log.GetLevel())
			assert.IsType(t, tt.formatter, Log.Formatter)
		})
	}
}

func TestScopedEntries(t *testing.T) {
	Init(&config.AppConfig{LogLevel: "info", Environment: "Staging"})
	ForCourse("seguridad")

	learner := ForLearner(42)
	assert.Equal(t, int64(42), learner.Data["learner_id"])
	assert.Equal(t, "seguridad", learner.Data["course_id"])
	assert.Equal(t, "staging", learner.Data["env"])

	entry := Component("main")
	assert.Equal(t, "main", entry.Data["component"])
	assert.Equal(t, "seguridad", entry.Data["course_id"])
}
