package logging

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronLogger adapts an slog.Logger to cron.Logger.
type CronLogger struct {
	l *slog.Logger
}

var _ cron.Logger = CronLogger{}

// NewCronLogger wraps l for use with cron.WithLogger.
func NewCronLogger(l *slog.Logger) CronLogger {
	if l == nil {
		l = Discard()
	}
	return CronLogger{l: l}
}

// Info logs routine scheduling messages at debug level; cron is chatty.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
