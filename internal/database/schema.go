package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"blogapi/internal/config"
	"blogapi/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes. hybrid runs SQL migrations everywhere and AutoMigrate
// outside production-like environments.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do and what is pending.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPlan is the outcome of resolving DB_SCHEMA_MODE for one config.
type schemaPlan struct {
	mode    string
	runSQL  bool
	runAuto bool
	// forced marks auto mode accepted in a production-like env.
	forced bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func resolveSchemaPlan(cfg *config.Config) (schemaPlan, error) {
	p := schemaPlan{mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if p.mode == "" {
		p.mode = SchemaModeHybrid
	}
	prodLike := isProdLikeEnv(cfg.Env)

	// The embedded SQL is PostgreSQL; SQLite databases are always built from the models.
	if cfg.DBDriver == "sqlite" {
		if p.mode == SchemaModeSQL {
			return p, fmt.Errorf("DB_SCHEMA_MODE=sql is not supported with DB_DRIVER=sqlite")
		}
		p.runAuto = true
		return p, nil
	}

	switch p.mode {
	case SchemaModeSQL:
		p.runSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return p, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		p.runAuto = true
		p.forced = prodLike
	case SchemaModeHybrid:
		p.runSQL = true
		p.runAuto = !prodLike
	default:
		return p, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", p.mode)
	}
	return p, nil
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := resolveSchemaPlan(cfg)
	if err != nil {
		return err
	}

	if plan.runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.runAuto {
		return nil
	}

	if plan.forced {
		middleware.Logger.Warn("AutoMigrate forced in a production-like environment; review schema diffs before deploying",
			slog.String("env", cfg.Env))
	}
	middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the schema policy and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := resolveSchemaPlan(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.runSQL,
		WillRunAutoMigrate: plan.runAuto,
	}
	if !plan.runSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pendingMigrations(applied, GetMigrations())
	return status, nil
}

// pendingMigrations returns the registered migrations absent from applied,
// in registration order.
func pendingMigrations(applied []int, registered []Migration) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []Migration
	for _, m := range registered {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}
