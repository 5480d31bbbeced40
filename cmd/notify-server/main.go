package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	internalhttp "github.com/securenotify/notify-core/internal/api/http"
	"github.com/securenotify/notify-core/internal/audit"
	"github.com/securenotify/notify-core/internal/auth"
	"github.com/securenotify/notify-core/internal/cleanup"
	"github.com/securenotify/notify-core/internal/db"
	"github.com/securenotify/notify-core/internal/keys"
	"github.com/securenotify/notify-core/internal/ratelimit"
	"github.com/securenotify/notify-core/internal/revocation"
	"github.com/securenotify/notify-core/internal/users"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Notify Core Server", "version", AppVersion)

	if err := config.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := db.RunMigrations(config.Database.Url); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.InitDB(ctx, config.Database.Url)
	if err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	limiter := buildLimiter(ctx)

	sink := audit.SlogSink{}
	userStore := users.NewStore(pool)
	keyStore := keys.NewStore(pool)
	revocationStore := revocation.NewPgStore(pool)

	authService := auth.NewService(userStore, auth.Config{
		Secret: config.Http.JWTSecret,
		TTL:    time.Duration(config.Auth.TokenTTLMinutes) * time.Minute,
	})

	lifecycle := revocation.NewLifecycle(revocationStore, revocation.LifecycleConfig{
		HashIterations: config.Revocation.HashIterations,
		MaxAttempts:    config.Revocation.MaxAttempts,
		Lockout:        time.Duration(config.Revocation.LockoutMinutes) * time.Minute,
	})
	deliverer := revocation.NewWebhookDeliverer(config.Delivery.WebhookURL)
	revocationService := revocation.NewService(lifecycle, revocationStore, keyStore, deliverer, sink)

	sweeper := cleanup.NewSweeper(revocationStore, keyStore, sink, cleanup.Config{
		Secret:    config.Cleanup.Secret,
		Retention: time.Duration(config.Cleanup.RetentionDays) * 24 * time.Hour,
		BatchSize: config.Cleanup.BatchSize,
	})
	if config.Cleanup.IntervalMinutes > 0 {
		go sweeper.StartSchedule(ctx, time.Duration(config.Cleanup.IntervalMinutes)*time.Minute)
	}

	services := &internalhttp.Services{
		Auth:        authService,
		Keys:        keyStore,
		Revocations: revocationService,
		Sweeper:     sweeper,
		Limiter:     limiter,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Cleanup-Secret"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, config.Http, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

// buildLimiter wires the Redis-backed limiter when an address is
// configured, so admission counts are shared across replicas. Without
// Redis each replica enforces the quota independently.
func buildLimiter(ctx context.Context) ratelimit.Limiter {
	if config.Redis.Addr == "" {
		slog.Warn("No Redis configured, using in-process rate limiter")
		memory := ratelimit.NewMemoryLimiter(0)
		go memory.StartSweep(ctx, time.Minute, 10*time.Minute)
		return memory
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Error("Redis connection failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to Redis", "addr", config.Redis.Addr)
	return ratelimit.NewRedisLimiter(client)
}
