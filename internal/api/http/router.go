package http

import (
	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/api/http/handler"
	"github.com/securenotify/notify-core/internal/api/http/middleware"
	"github.com/securenotify/notify-core/internal/auth"
	"github.com/securenotify/notify-core/internal/cleanup"
	"github.com/securenotify/notify-core/internal/keys"
	"github.com/securenotify/notify-core/internal/ratelimit"
	"github.com/securenotify/notify-core/internal/revocation"
)

type Services struct {
	Auth        *auth.Service
	Keys        *keys.Store
	Revocations *revocation.Service
	Sweeper     *cleanup.Sweeper
	Limiter     ratelimit.Limiter
}

func SetupRoute(engine *gin.Engine, config Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	authHandler := handler.NewAuthHandler(srvs.Auth)
	keysHandler := handler.NewKeysHandler(srvs.Keys)
	revocationsHandler := handler.NewRevocationsHandler(srvs.Revocations)
	adminHandler := handler.NewAdminHandler(srvs.Sweeper, srvs.Keys)

	// Admission control runs before authentication: an unauthenticated
	// flood must be rejected by the limiter, not by token parsing.
	authLimit := middleware.RateLimit(srvs.Limiter, "auth", config.RateLimit.Auth.Limiter())
	keysLimit := middleware.RateLimit(srvs.Limiter, "keys", config.RateLimit.Keys.Limiter())
	revokeLimit := middleware.RateLimit(srvs.Limiter, "revoke", config.RateLimit.Revoke.Limiter())

	jwtAuth := middleware.JWTAuth(config.JWTSecret)

	api := engine.Group("/api")
	api.POST("/auth/register", authLimit, authHandler.Register)
	api.POST("/auth/login", authLimit, authHandler.Login)

	api.POST("/register", keysLimit, jwtAuth, keysHandler.Register)
	api.GET("/register", keysLimit, jwtAuth, keysHandler.GetByChannel)
	api.GET("/keys", keysLimit, jwtAuth, keysHandler.ListMine)

	api.DELETE("/keys/:id", revokeLimit, jwtAuth, revocationsHandler.Revoke)
	api.POST("/keys/revocations/:id/confirm", revokeLimit, jwtAuth, revocationsHandler.Confirm)
	api.POST("/keys/revocations/:id/cancel", revokeLimit, jwtAuth, revocationsHandler.Cancel)
	api.GET("/keys/revocations/:id", revokeLimit, jwtAuth, revocationsHandler.Status)

	api.POST("/admin/keys/:id/restore", jwtAuth, middleware.RequireRole(revocation.RoleAdmin), adminHandler.RestoreKey)

	// Cleanup authenticates with its own shared secret, not a JWT.
	api.POST("/admin/cleanup", adminHandler.TriggerCleanup)
}
