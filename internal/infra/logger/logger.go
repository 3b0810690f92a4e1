// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"course_runtime/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

// scope carries the fields every runtime entry shares. It is set once at
// startup, before any learner runtime exists.
var scope = logrus.NewEntry(Log)

// Init applies level and format from cfg: JSON in production and staging,
// coloured text elsewhere.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
	Log.SetFormatter(formatterFor(cfg.Environment))

	scope = Log.WithField("env", strings.ToLower(cfg.Environment))
	Log.WithFields(logrus.Fields{"level": level.String(), "env": cfg.Environment}).Info("Logger initialized")
}

func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		}
	}
}

// ForCourse tags every later entry with the course being served.
func ForCourse(courseID string) *logrus.Entry {
	scope = scope.WithField("course_id", courseID)
	return scope
}

// Component returns a scoped entry for one part of the process.
func Component(name string) *logrus.Entry {
	return scope.WithField("component", name)
}

// ForLearner returns an entry scoped to one learner's runtime.
func ForLearner(learnerID int64) *logrus.Entry {
	return scope.WithField("learner_id", learnerID)
}
