package database

import (
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm/logger"
)

type gormWriter struct {
	l *log.Logger
}

// Printf satisfies logger.Writer. gorm only prints slow queries, errors and,
// at debug level, every statement.
func (w gormWriter) Printf(format string, args ...any) {
	w.l.Warnf(format, args...)
}

// NewLogger bridges gorm's logger onto the application logger.
func NewLogger(l *log.Logger) logger.Interface {
	level := logger.Warn
	if l.GetLevel() <= log.DebugLevel {
		level = logger.Info
	}
	return logger.New(gormWriter{l: l.WithPrefix("db")}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
