package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/driving-school-backend/internal/app"
	"github.com/nekogravitycat/driving-school-backend/internal/cache"
	"github.com/nekogravitycat/driving-school-backend/internal/config"
	"github.com/nekogravitycat/driving-school-backend/internal/db"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{}).Fatal("failed to load config", "error", err)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "driving-school-backend",
	})

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal("failed to connect to db", "error", err)
	}
	defer pool.Close()

	// Connect Redis when configured
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.NewClient(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatal("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
		log.Info("shared window cache enabled", "redis_addr", cfg.RedisAddr)
	}

	container := app.NewContainer(app.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		DBPool:              pool,
		Redis:               rdb,
		JWTSecret:           cfg.JWTSecret,
		JWTTTL:              cfg.JWTAccessTokenTTL,
		WindowCacheTTL:      cfg.WindowCacheTTL,
		DraftDebounce:       cfg.DraftDebounce,
		DraftTTL:            cfg.DraftTTL,
		FetchTimeout:        cfg.FetchTimeout,
		LessonRounding:      cfg.LessonRounding,
		ReservationRounding: cfg.ReservationRounding,
		Logger:              log,
	})

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Closing drafts releases long-polling requests so Shutdown can finish.
	server.RegisterOnShutdown(container.Drafts.Close)

	// Run server in separate goroutine
	go func() {
		log.Info("server running", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	log.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}
	container.Drafts.Close()

	log.Info("server exited gracefully")
}
