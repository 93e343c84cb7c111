package storage

import (
	"fmt"
	"os"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config describes the database connection.
type Config struct {
	Type string // postgres, mysql or sqlite
	DSN  string
}

// ConfigFromEnv loads the connection settings from DATABASE_TYPE and
// DATABASE_DSN, defaulting the type to postgres.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Type: os.Getenv("DATABASE_TYPE"),
		DSN:  os.Getenv("DATABASE_DSN"),
	}
	if cfg.Type == "" {
		cfg.Type = "postgres"
	}
	return cfg
}

// Connect opens a GORM connection for the configured dialect.
// TranslateError is enabled so that duplicate-key and foreign-key violations
// surface as gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated regardless of
// the driver.
func Connect(cfg *Config) (*gorm.DB, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	switch cfg.Type {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case "mysql":
		// Validate the DSN up front so a malformed one fails fast instead of
		// on the first query.
		if _, err := gomysql.ParseDSN(cfg.DSN); err != nil {
			return nil, fmt.Errorf("invalid mysql DSN: %w", err)
		}
		return gorm.Open(mysql.Open(cfg.DSN), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql or sqlite)", cfg.Type)
	}
}
