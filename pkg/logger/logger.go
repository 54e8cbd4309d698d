package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus to provide structured, component-scoped logging.
type Logger struct {
	entry *logrus.Entry
}

// Init configures the global logrus setup. Output is JSON so the logs can be
// shipped to a collector without further parsing.
func Init(level logrus.Level) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)
}

// New creates a Logger scoped to a component name.
func New(component string) *Logger {
	return &Logger{
		entry: logrus.WithField("component", component),
	}
}

// WithField returns a copy of the logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithEntity returns a copy of the logger tagged with a knowledge-graph
// entity id, used by the pipeline when reporting per-item outcomes.
func (l *Logger) WithEntity(qid string) *Logger {
	return &Logger{entry: l.entry.WithField("entity_id", qid)}
}

// WithError returns a copy of the logger carrying the error's message.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// Info records an info level message.
func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

// Warn records a warning level message.
func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

// Error records an error level message.
func (l *Logger) Error(message string) {
	l.entry.Error(message)
}

// Debug records a debug level message.
func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

// Fatal records a fatal message and terminates the process.
func (l *Logger) Fatal(message string) {
	l.entry.Fatal(message)
}
