// Package database opens the gorm connection and manages the schema.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"blogapi/internal/config"
	"blogapi/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Pool defaults used when the DB_* pool settings are zero.
const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = 5 * time.Minute
)

// Dialector picks the gorm driver for cfg.DBDriver. SQLite connections
// always enable foreign keys so ON DELETE CASCADE behaves as on Postgres.
func Dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == "sqlite" {
		sep := "?"
		if strings.Contains(cfg.DBSQLitePath, "?") {
			sep = "&"
		}
		return sqlite.Open(cfg.DBSQLitePath + sep + "_foreign_keys=on")
	}
	return postgres.Open(postgresDSN(cfg))
}

func postgresDSN(cfg *config.Config) string {
	ssl := cfg.DBSSLMode
	if ssl == "" {
		ssl = "disable"
	}
	host := cfg.DBHost
	if cfg.DBPort != "" {
		host += ":" + cfg.DBPort
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     host,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {ssl}}.Encode(),
	}
	return u.String()
}

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// ApplySchema runs ApplySchema right after connecting.
	ApplySchema bool
}

// Connect opens the database described by cfg and applies the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions is Connect with the schema step under caller control.
// cmd/migrate uses it to inspect or roll back without migrating first.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	db, err := gorm.Open(Dialector(cfg), &gorm.Config{Logger: newGormLogger(middleware.Logger)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName(cfg), err)
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	middleware.Logger.Info("database connected", slog.String("driver", driverName(cfg)))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), db, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func driverName(cfg *config.Config) string {
	if cfg.DBDriver == "" {
		return "postgres"
	}
	return cfg.DBDriver
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}

	maxOpen := orDefault(cfg.DBMaxOpenConns, defaultMaxOpenConns)
	maxIdle := orDefault(cfg.DBMaxIdleConns, defaultMaxIdleConns)
	if cfg.DBDriver == "sqlite" {
		// SQLite allows a single writer.
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(orDefault(time.Duration(cfg.DBConnMaxLifetimeMinutes)*time.Minute, defaultConnLifetime))
	return nil
}
