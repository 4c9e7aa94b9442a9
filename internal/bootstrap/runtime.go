// Package bootstrap prepares the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blogapi/internal/cache"
	"blogapi/internal/config"
	"blogapi/internal/database"
	"blogapi/internal/middleware"
	"blogapi/internal/models"
	"blogapi/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedTaxonomy get-or-creates the sample categories and tags.
	SeedTaxonomy bool
}

// InitRuntime connects to DB and Redis, ensures the development staff
// account and optionally seeds the sample taxonomy.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; r stays nil when it is unreachable.
	r := cache.InitRedis(ctx, cfg.RedisURL)

	if err := EnsureDevAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedTaxonomy {
		if _, _, err := seed.NewSeeder(db, seed.Options{}).SeedTaxonomy(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to seed taxonomy: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevAdmin makes sure a staff superuser named DEV_ADMIN_USERNAME
// exists outside production. An existing account is promoted; its
// credentials are left alone.
func EnsureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.IsProduction() {
		return nil
	}
	username := strings.TrimSpace(cfg.DevAdminUsername)
	if username == "" {
		return nil
	}

	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	switch {
	case err == nil:
		if existing.IsStaff && existing.IsSuperuser {
			return nil
		}
		if err := db.WithContext(ctx).Model(&existing).
			Updates(map[string]any{"is_staff": true, "is_superuser": true}).Error; err != nil {
			return err
		}
		middleware.Logger.Info("development admin promoted", slog.String("username", username))
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if cfg.DevAdminPassword == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when DEV_ADMIN_USERNAME is")
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevAdminEmail))
	if email == "" {
		email = username + "@localhost"
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.DevAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Username:    username,
		Email:       email,
		Password:    string(hashedPassword),
		IsStaff:     true,
		IsSuperuser: true,
		IsActive:    true,
	}
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		return tx.Create(models.NewUserProfile(admin.ID)).Error
	}); err != nil {
		return err
	}

	middleware.Logger.Info("development admin created", slog.String("username", username), slog.String("email", email))
	return nil
}
