package server

import "strings"

// MetadataServerConfig holds metadata store configuration
type MetadataServerConfig struct {
	Type     string                 `mapstructure:"type"      yaml:"type"`
	LogLevel string                 `mapstructure:"log_level" yaml:"log_level"`
	SQLite   MetadataSQLiteConfig   `mapstructure:"sqlite"    yaml:"sqlite"`
	Postgres MetadataPostgresConfig `mapstructure:"postgres"  yaml:"postgres"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetadataPostgresConfig holds PostgreSQL-specific configuration
type MetadataPostgresConfig struct {
	DSN          string `mapstructure:"dsn"            yaml:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

func (cfg MetadataServerConfig) Validate() error {
	switch strings.ToLower(cfg.Type) {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			return ErrFatalConfig.New("metadata.sqlite.path is required")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return ErrFatalConfig.New("metadata.postgres.dsn is required")
		}
	default:
		return ErrFatalConfig.New("unknown metadata store type %q", cfg.Type)
	}
	return nil
}
