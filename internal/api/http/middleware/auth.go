package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/auth"
	"github.com/securenotify/notify-core/internal/revocation"
)

const actorKey = "actor"

// JWTAuth validates the bearer token and stores the resulting actor on
// the request context for handlers and the revocation workflow.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(actorKey, revocation.Actor{
			ID:          claims.UserID,
			Role:        claims.Role,
			Permissions: claims.Permissions,
		})
		c.Next()
	}
}

// Actor returns the authenticated principal, or a zero Actor when the
// route is reachable without JWTAuth.
func Actor(c *gin.Context) revocation.Actor {
	value, exists := c.Get(actorKey)
	if !exists {
		return revocation.Actor{}
	}
	actor, ok := value.(revocation.Actor)
	if !ok {
		return revocation.Actor{}
	}
	return actor
}

// RequireRole gates a route to the listed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
