// Package main provides the main entry point for the SpotGrid assignment engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adscope-labs/spotgrid/app/handlers"
	"github.com/adscope-labs/spotgrid/app/middleware"
	"github.com/adscope-labs/spotgrid/app/router"
	"github.com/adscope-labs/spotgrid/app/scheduler"
	"github.com/adscope-labs/spotgrid/app/services"
	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/config"
	"github.com/adscope-labs/spotgrid/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting SpotGrid application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to the configured sink, with
// size-based rotation when a file is involved
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotating)
	default: // both
		log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	marketRepo := repository.NewMarketRepository(db)
	gridRepo := repository.NewProgrammingGridRepository(db)
	blockRepo := repository.NewLanguageBlockRepository(db)
	gridAssignmentRepo := repository.NewMarketGridAssignmentRepository(db)
	spotRepo := repository.NewSpotRepository(db)
	spotAssignmentRepo := repository.NewSpotAssignmentRepository(db)
	collisionRepo := repository.NewCollisionRecordRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		cfg.Admin.Username,
		cfg.Admin.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Resolution cache is optional: without Redis the resolver still works,
	// it just hits the store per (market, date)
	var scheduleCache businessflow.ScheduleCache
	if rc != nil {
		scheduleCache = services.NewRedisScheduleCache(rc, cfg.Cache.DefaultTTL, log.Default())
	}

	// Initialize flows
	resolverFlow, err := businessflow.NewGridResolverFlow(
		gridAssignmentRepo,
		scheduleCache,
		businessflow.TieBreakPolicy(cfg.Engine.TieBreakPolicy),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize grid resolver: %w", err)
	}

	matcherFlow := businessflow.NewBlockMatcherFlow(blockRepo)

	collisionFlow := businessflow.NewCollisionFlow(
		gridAssignmentRepo,
		collisionRepo,
		gridRepo,
	)

	assignmentFlow := businessflow.NewAssignmentFlow(
		resolverFlow,
		matcherFlow,
		spotRepo,
		spotAssignmentRepo,
	)

	scheduleAdminFlow := businessflow.NewScheduleAdminFlow(
		db,
		marketRepo,
		gridRepo,
		blockRepo,
		gridAssignmentRepo,
		collisionRepo,
		collisionFlow,
		resolverFlow,
		log.Default(),
	)

	spotIntakeFlow := businessflow.NewSpotIntakeFlow(spotRepo, marketRepo)

	// Assignment scheduler doubles as the on-demand batch runner for the API
	sched := scheduler.NewAssignmentScheduler(
		spotRepo,
		assignmentFlow,
		resolverFlow,
		collisionFlow,
		log.Default(),
		cfg.Engine.SchedulerInterval,
		cfg.Engine.BatchWorkers,
		cfg.Engine.SpotPageSize,
	)
	if cfg.Engine.SchedulerEnabled {
		schedCtx, stopScheduler := context.WithCancel(context.Background())
		go sched.Start(schedCtx)
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	// Initialize handlers
	authHandler := handlers.NewAdminAuthHandler(tokenService)
	scheduleHandler := handlers.NewScheduleAdminHandler(scheduleAdminFlow)
	assignHandler := handlers.NewAssignmentHandler(assignmentFlow, sched)
	intakeHandler := handlers.NewSpotIntakeHandler(spotIntakeFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authHandler,
		scheduleHandler,
		assignHandler,
		intakeHandler,
		authMiddleware,
		cfg.Security.AllowedOrigins,
	)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
