package systemtest

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	internalhttp "github.com/securenotify/notify-core/internal/api/http"
	"github.com/securenotify/notify-core/internal/audit"
	"github.com/securenotify/notify-core/internal/auth"
	"github.com/securenotify/notify-core/internal/cleanup"
	"github.com/securenotify/notify-core/internal/db"
	"github.com/securenotify/notify-core/internal/keys"
	"github.com/securenotify/notify-core/internal/ratelimit"
	"github.com/securenotify/notify-core/internal/revocation"
	"github.com/securenotify/notify-core/internal/users"
	"github.com/securenotify/notify-core/systemtest/postgres"
	"github.com/securenotify/notify-core/systemtest/tests"
)

const (
	jwtSecret     = "systemtest-jwt-secret"
	cleanupSecret = "systemtest-cleanup-secret-0123456789"
	ownerPassword = "password123"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping system test in short mode")
	}

	ctx := context.Background()
	container, dbURL, err := postgres.Start(ctx, "notify", "notify", "notify")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = postgres.Terminate(context.Background(), container)
	})

	require.NoError(t, db.RunMigrations(dbURL))

	pool, err := db.InitDB(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	userStore := users.NewStore(pool)
	keyStore := keys.NewStore(pool)
	revocationStore := revocation.NewPgStore(pool)
	sink := audit.SlogSink{}
	codes := tests.NewCodeRecorder()

	authService := auth.NewService(userStore, auth.Config{Secret: jwtSecret, TTL: time.Hour})
	lifecycle := revocation.NewLifecycle(revocationStore, revocation.LifecycleConfig{})
	revocationService := revocation.NewService(lifecycle, revocationStore, keyStore, codes, sink)
	sweeper := cleanup.NewSweeper(revocationStore, keyStore, sink, cleanup.Config{Secret: cleanupSecret})

	_, err = userStore.Create(ctx, "owner", ownerPassword, "user", []string{revocation.PermissionRevokeKeys})
	require.NoError(t, err)

	config := internalhttp.Config{
		JWTSecret: jwtSecret,
		RateLimit: internalhttp.RateLimitConfig{
			Auth:   internalhttp.ClassConfig{WindowSeconds: 60, MaxRequests: 1000},
			Keys:   internalhttp.ClassConfig{WindowSeconds: 60, MaxRequests: 1000},
			Revoke: internalhttp.ClassConfig{WindowSeconds: 60, MaxRequests: 1000},
		},
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, config, &internalhttp.Services{
		Auth:        authService,
		Keys:        keyStore,
		Revocations: revocationService,
		Sweeper:     sweeper,
		Limiter:     ratelimit.NewMemoryLimiter(0),
	})

	t.Run("Register", func(t *testing.T) {
		tests.TestRegister(t, engine)
	})

	var token string
	t.Run("Login", func(t *testing.T) {
		token = tests.TestLogin(t, engine, jwtSecret, "owner", ownerPassword)
	})
	t.Run("KeyRevocationFlow", func(t *testing.T) {
		tests.TestKeyRevocationFlow(t, engine, token, codes)
	})
	t.Run("CancelFlow", func(t *testing.T) {
		tests.TestCancelFlow(t, engine, token)
	})
	t.Run("CleanupTrigger", func(t *testing.T) {
		tests.TestCleanupTrigger(t, engine, cleanupSecret)
	})
}
