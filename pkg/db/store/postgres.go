package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm/logger"
)

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewPostgresStore creates a new PostgreSQL-backed metadata store
func NewPostgresStore(cfg PostgresConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}

	return open(postgres.Open(cfg.DSN), dialectPostgres, cfg.LogLevel, maxOpen)
}
