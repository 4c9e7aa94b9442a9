// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "blogapi/docs" // swagger docs
	"blogapi/internal/auth"
	"blogapi/internal/bootstrap"
	"blogapi/internal/config"
	"blogapi/internal/featureflags"
	"blogapi/internal/middleware"
	"blogapi/internal/models"
	"blogapi/internal/notifications"
	"blogapi/internal/observability"
	"blogapi/internal/repository"
	"blogapi/internal/service"
	"blogapi/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	stopTracing    func(context.Context) error

	tokens       *auth.Manager
	featureFlags *featureflags.Manager
	notifier     *notifications.Notifier
	hub          *notifications.Hub

	authService         *service.AuthService
	userService         *service.UserService
	postService         *service.PostService
	commentService      *service.CommentService
	taxonomyService     *service.TaxonomyService
	notificationService *service.NotificationService
}

// NewServer connects to the database and Redis and builds the server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	stopTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	s, err := NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		return nil, err
	}
	s.stopTracing = stopTracing
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient disables caching, rate limiting, ws tickets and
// cross-instance notification fan-out.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	validate := validation.New(cfg.PasswordPolicy)
	tokens := auth.NewManager(auth.Options{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  time.Duration(cfg.JWTAccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(cfg.JWTRefreshTTLHours) * time.Hour,
	}, auth.NewRevocationStore(redisClient))

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)
	hub := notifications.NewHub(notifier)

	notificationService := service.NewNotificationService(notificationRepo, userRepo, &livePusher{hub: hub, flags: flags})

	s := &Server{
		config:              cfg,
		db:                  db,
		redis:               redisClient,
		promMiddleware:      middleware.InitMetrics("blogapi"),
		tokens:              tokens,
		featureFlags:        flags,
		notifier:            notifier,
		hub:                 hub,
		authService:         service.NewAuthService(userRepo, tokens, validate),
		userService:         service.NewUserService(userRepo),
		postService:         service.NewPostService(postRepo, categoryRepo, tagRepo, commentRepo, notificationService, validate, cfg.CommentMaxDepth),
		commentService:      service.NewCommentService(commentRepo, postRepo, notificationService, flags, validate, cfg.CommentMaxDepth),
		taxonomyService:     service.NewTaxonomyService(categoryRepo, tagRepo, postRepo, validate),
		notificationService: notificationService,
	}
	return s, nil
}

// livePusher forwards notifications to sockets for users the
// live_notifications flag is on for.
type livePusher struct {
	hub   *notifications.Hub
	flags *featureflags.Manager
}

func (p *livePusher) Send(ctx context.Context, userID uint, ev notifications.Event) error {
	if !p.flags.Enabled(featureflags.LiveNotifications, userID) {
		return nil
	}
	return p.hub.Send(ctx, userID, ev)
}

// NewApp builds the Fiber app with middleware and routes but does not listen.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Blog API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: httpCode(fe.Code)})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func httpCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return models.CodeValidation
	case fiber.StatusUnauthorized:
		return models.CodeUnauthenticated
	case fiber.StatusForbidden:
		return models.CodeForbidden
	}
	return models.CodeInternal
}

// globalRequestsPerMinute caps each client IP across the whole API.
const globalRequestsPerMinute = 300

// SetupMiddleware installs the global middleware chain. CORS sits ahead of
// the limiter so 429 responses stay readable from the browser.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(app, s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger("/health", "/metrics"))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRequestsPerMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  middleware.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	required := middleware.AuthRequired(s.tokens)
	optional := middleware.OptionalAuth(s.tokens)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/refresh", s.Refresh)
	authGroup.Post("/logout", required, s.Logout)
	authGroup.Get("/profile", required, s.GetProfile)
	authGroup.Put("/profile", required, s.UpdateProfile)
	authGroup.Patch("/profile", required, s.UpdateProfile)
	authGroup.Post("/change-password", required, s.ChangePassword)
	authGroup.Delete("/delete-account", required, s.DeleteAccount)

	users := api.Group("/users")
	users.Get("/", required, s.ListUsers)
	users.Get("/:id", optional, s.GetUser)

	categories := api.Group("/categories")
	categories.Get("/", s.ListCategories)
	categories.Post("/", required, s.CreateCategory)
	categories.Get("/:slug/posts", s.CategoryPosts)
	categories.Get("/:slug", s.GetCategory)
	categories.Put("/:slug", required, s.UpdateCategory)
	categories.Patch("/:slug", required, s.UpdateCategory)
	categories.Delete("/:slug", required, s.DeleteCategory)

	tags := api.Group("/tags")
	tags.Get("/", s.ListTags)
	tags.Post("/", required, s.CreateTag)
	tags.Get("/:slug/posts", s.TagPosts)
	tags.Get("/:slug", s.GetTag)
	tags.Put("/:slug", required, s.UpdateTag)
	tags.Patch("/:slug", required, s.UpdateTag)
	tags.Delete("/:slug", required, s.DeleteTag)

	// Fixed paths are registered before /:slug.
	posts := api.Group("/posts")
	posts.Get("/", optional, s.ListPosts)
	posts.Post("/", required, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/my-posts", required, s.MyPosts)
	posts.Get("/trending", s.TrendingPosts)
	posts.Get("/featured", s.FeaturedPosts)
	posts.Post("/:slug/like", required, s.ToggleLike)
	posts.Get("/:slug/likes", optional, s.ListLikes)
	posts.Get("/:slug/stats", required, s.PostStats)
	posts.Get("/:slug/comments", s.PostComments)
	posts.Get("/:slug", optional, s.GetPost)
	posts.Put("/:slug", required, s.UpdatePost)
	posts.Patch("/:slug", required, s.UpdatePost)
	posts.Delete("/:slug", required, s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/", s.ListComments)
	comments.Post("/", required, middleware.RateLimit(s.redis, 10, time.Minute, "comment"), s.CreateComment)
	comments.Get("/pending", required, s.PendingComments)
	comments.Post("/:id/approve", required, s.ApproveComment)
	comments.Post("/:id/reject", required, s.RejectComment)
	comments.Put("/:id", required, s.UpdateComment)
	comments.Patch("/:id", required, s.UpdateComment)
	comments.Delete("/:id", required, s.DeleteComment)

	api.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.Search)

	notes := api.Group("/notifications", required)
	notes.Get("/", s.ListNotifications)
	notes.Get("/unread-count", s.UnreadCount)
	notes.Post("/read-all", s.MarkAllNotificationsRead)
	notes.Post("/:id/read", s.MarkNotificationRead)

	api.Post("/ws/ticket", required, s.IssueWSTicket)
	api.Get("/ws", s.WSAuth(), s.WebsocketHandler())

	api.Get("/admin/feature-flags", required, s.GetFeatureFlags)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: its
// absence degrades the service but does not make it unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status, overall := fiber.StatusOK, "healthy"
	switch {
	case dbStatus != "healthy":
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the notification hub to Redis and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()

	if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
		middleware.Logger.Error("failed to start hub wiring", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			middleware.Logger.Error("error flushing traces", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
