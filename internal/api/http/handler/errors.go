package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/securenotify/notify-core/internal/api/http/dto"
	"github.com/securenotify/notify-core/internal/apperr"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.AuthRequired, apperr.AuthFailed, apperr.CleanupUnauthorized:
		return http.StatusUnauthorized
	case apperr.PermissionDenied:
		return http.StatusForbidden
	case apperr.ValidationFailed:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.AlreadyRevoked, apperr.ConfirmationPending:
		return http.StatusConflict
	case apperr.Locked:
		return http.StatusLocked
	case apperr.Expired:
		return http.StatusGone
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a workflow error. Internal failures are logged
// with their cause but rendered with only the opaque reference id.
func writeError(c *gin.Context, err error) {
	appErr := apperr.As(err)
	if appErr == nil {
		appErr = apperr.Wrap("unexpected error", err)
	}

	body := dto.ErrorResponse{Kind: appErr.Kind.String()}
	switch appErr.Kind {
	case apperr.Internal:
		slog.Error("Internal error", "ref", appErr.Ref, "error", err)
		body.Error = "internal error"
		body.Ref = appErr.Ref
	default:
		body.Error = appErr.Msg
		body.Ref = appErr.Ref
	}

	if appErr.RetryAfter > 0 {
		seconds := int64(appErr.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		body.RetryAfter = seconds
		c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	}
	if appErr.ConfirmationID != "" {
		body.ConfirmationID = appErr.ConfirmationID
		body.ExpiresAt = appErr.ExpiresAt.UTC().Format(time.RFC3339)
	}

	c.JSON(statusFor(appErr.Kind), body)
}
