// Command main is the entry point for the blog backend server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blogapi/internal/config"
	"blogapi/internal/middleware"
	"blogapi/internal/server"
)

// @title Blog API
// @version 1.0
// @description Blog platform API with posts, comments, likes, categories, tags and notifications
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	middleware.Configure(cfg.Env, cfg.LogLevel)

	srv, err := server.NewServer(context.Background(), cfg)
	if err != nil {
		return err
	}

	stop, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-stop.Done()
		middleware.Logger.Info("shutdown signal received", slog.Duration("grace", shutdownGrace))
		ctx, done := context.WithTimeout(context.Background(), shutdownGrace)
		defer done()
		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
	}()

	return srv.Start()
}
