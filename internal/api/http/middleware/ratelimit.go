package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/ratelimit"
)

// RateLimit makes the admission decision for one endpoint class before
// anything else runs, keyed by client IP. Denials carry the standard
// rate limit headers plus Retry-After.
func RateLimit(limiter ratelimit.Limiter, class string, cfg ratelimit.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := class + ":ip:" + c.ClientIP()
		result := limiter.Check(c.Request.Context(), key, cfg)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int64(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate limit exceeded",
				"retryAfterSeconds": retryAfter,
			})
			return
		}
		c.Next()
	}
}
