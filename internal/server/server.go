// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"log"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"corkboard/internal/access"
	"corkboard/internal/cache"
	"corkboard/internal/config"
	"corkboard/internal/database"
	"corkboard/internal/geo"
	"corkboard/internal/locality"
	"corkboard/internal/middleware"
	"corkboard/internal/models"
	"corkboard/internal/moderation"
	"corkboard/internal/observability"
	"corkboard/internal/repository"
	"corkboard/internal/service"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	postRepo       repository.PostRepository
	resolver       service.LocalityResolver
	gate           *access.Gate
	postService    *service.PostService
	queryEngine    *service.QueryEngine
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	resolver := locality.NewResolver(
		cfg.GeocoderBaseURL,
		cfg.GeocoderAPIKey,
		time.Duration(cfg.GeocoderTimeoutSec)*time.Second,
		middleware.Logger,
	)
	mod := moderation.NewGate(
		cfg.AnthropicAPIKey,
		cfg.ModerationModel,
		moderation.ParseFailPolicy(cfg.ModerationFailPolicy),
		time.Duration(cfg.ModerationTimeoutSec)*time.Second,
		middleware.Logger,
	)

	return NewServerWithDeps(cfg, db, redisClient, resolver, mod), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and swaps
// in stub geocoding or moderation.
func NewServerWithDeps(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	resolver service.LocalityResolver,
	mod service.Moderator,
) *Server {
	postRepo := repository.NewPostRepository(db)
	cells := geo.NewCellIndexer(cfg.CellPrecision)
	gate := access.NewGate(cfg.RootDomain)

	prom := middleware.InitMetrics("corkboard-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		postRepo:       postRepo,
		resolver:       resolver,
		gate:           gate,
	}
	server.postService = service.NewPostService(
		postRepo, cells, resolver, gate, mod, cfg.MaxContentLength, middleware.Logger,
	)
	server.queryEngine = service.NewQueryEngine(
		postRepo, cells, resolver,
		service.ParseStrategy(cfg.QueryStrategy),
		time.Duration(cfg.FreshnessWindowHours)*time.Hour,
		cfg.RadiusMiles,
	)

	return server
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New(requestid.Config{
		Generator: observability.GenerateCorrelationID,
	}))

	// Span per request; must run before the context middleware so the trace
	// id lands in log records.
	app.Use(middleware.TracingMiddleware())

	// Locality context must run before the logging context middleware so the
	// resolved slug lands in log records.
	app.Use(middleware.LocalityContext(s.config.RootDomain, s.config.LocalityCookie, s.config.IsDevelopment()))

	// Context Middleware to propagate Request ID and locality
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Feed and write path
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id/moderation", s.GetPostModeration)

	// Request context endpoints
	api.Get("/context", s.GetContext)
	api.Post("/context/locality", middleware.RateLimit(
		s.redis, 10, time.Minute, "set_locality"), s.SetLocality)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The feed works without Redis, it just loses its cache.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds and returns the configured Fiber app without listening.
// Tests drive it through app.Test.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		app := fiber.New(fiber.Config{
			AppName: "Corkboard API",
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				// Custom error handler
				log.Printf("Error: %v", err)
				return models.RespondWithError(c, fiber.StatusInternalServerError,
					models.NewInternalError(err))
			},
		})
		s.app = app
		s.SetupMiddleware(app)
		s.SetupRoutes(app)
	}
	return s.app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
