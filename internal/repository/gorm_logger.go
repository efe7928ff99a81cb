package repository

import (
	"time"

	"github.com/timmy/vcheck/internal/logger"
	gormlogger "gorm.io/gorm/logger"
)

// newGormLogger routes gorm's SQL logging through the application logger.
func newGormLogger(level string) gormlogger.Interface {
	lvl := gormlogger.Warn
	switch level {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "info":
		lvl = gormlogger.Info
	}
	return gormlogger.New(logger.GetDefault(), gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}
