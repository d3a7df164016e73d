package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLitePrefix marks a DSN as a local sqlite file (dev and tests).
const SQLitePrefix = "sqlite://"

// Options holds the pool settings.
type Options struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// Open connects to postgres, or to sqlite when dsn starts with "sqlite://",
// and auto-migrates the given models.
func Open(dsn string, opts Options, log *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, SQLitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, SQLitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	if log != nil {
		log.Info("database connected", zap.String("driver", dialector.Name()), zap.Int("models", len(models)))
	}
	return db, nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormLogLevel maps an application log level onto gorm's.
func GormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "error", "fatal":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
