package main // Entry point package

import (
	"context"
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"taskboard/internal/config"     // Internal config loader
	"taskboard/internal/database"   // MySQL connection pool
	"taskboard/internal/handler"    // HTTP handlers
	"taskboard/internal/middleware" // Cache and rate-limit middleware
	"taskboard/internal/queue"      // Activity event consumer
	"taskboard/internal/repository" // Data access layer
	"taskboard/internal/router"     // Route registration
	queue_publisher "taskboard/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if cfg.DBMigrate {
		if err := database.RunMigrations(context.Background(), db, "."); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	// Redis is optional: without it caching and rate limiting become
	// no-ops and delete confirmations fall back to process memory.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; cache/ratelimit disabled, confirmations in-memory")
	}

	profiles := repository.NewProfileRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	tasks := repository.NewTaskRepo(db)
	confirms := repository.NewConfirmStore(rdb)

	authHandler := handler.NewAuthHandler(cfg, profiles, roles, tokens)
	taskHandler := handler.NewTaskHandler(tasks, profiles, confirms, queue_publisher.PublishTaskActivity)
	adminHandler := handler.NewAdminHandler(profiles, roles, confirms, queue_publisher.PublishTaskActivity)

	e := echo.New()

	// The limiter is handed to the router instead of e.Use: inside the
	// protected groups it runs after JWTAuth, so buckets key on the real
	// user rather than every caller sharing one anonymous bucket.
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cacheCfg := config.LoadCacheConfig()
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	bump := middleware.NewCacheBump(cacheCfg, rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, limit)
	router.RegisterTasks(e, taskHandler, cfg.JWTSecret, limit, cache, bump)
	router.RegisterAdmin(e, adminHandler, cfg.JWTSecret, limit, bump)

	// The consumer reconnects forever in the background; task mutations
	// publish to the same queue and never block on broker failures.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
