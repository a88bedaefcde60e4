package store

import (
	"strings"

	"gorm.io/gorm/logger"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
)

// Open creates the store selected by the metadata configuration.
func Open(cfg config.MetadataServerConfig) (*Store, error) {
	level := ParseLogLevel(cfg.LogLevel)

	switch strings.ToLower(cfg.Type) {
	case "sqlite":
		return NewSQLiteStore(SQLiteConfig{
			Path:     cfg.SQLite.Path,
			LogLevel: level,
		})
	case "postgres":
		return NewPostgresStore(PostgresConfig{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			LogLevel:     level,
		})
	}

	return nil, config.ErrFatalConfig.New("unknown metadata store type %q", cfg.Type)
}

// ParseLogLevel maps a configured name onto the gorm logger levels.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info", "debug":
		return logger.Info
	}
	return logger.Silent
}
