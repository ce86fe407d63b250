package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
)

// maxErrLogLen is the maximum length for logged errors before truncation.
const maxErrLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at
// WARN level. Chat submits wait on the model, so it is generous.
const slowRequestThreshold = 2 * time.Second

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

const (
	ctxRequestID = "request_id"
	ctxIdentity  = "identity"
)

// RequestID tags every request with an id, reusing the caller's if given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// LoggingMiddleware logs all requests with timing. Failed requests are
// logged at ERROR, slow ones at WARN, the rest at DEBUG.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		}
		if id := c.GetString(ctxRequestID); id != "" {
			attrs = append(attrs, "request_id", id)
		}
		if id, ok := identityFrom(c); ok {
			attrs = append(attrs, "user_id", id.UserID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", truncate(c.Errors.String(), maxErrLogLen))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", attrs...)
		case duration > slowRequestThreshold:
			logger.Warn("slow request", attrs...)
		default:
			logger.Debug("request completed", attrs...)
		}
	}
}

// RequireAuth rejects requests without a valid access token.
func RequireAuth(a *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(bearerToken(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present.
func OptionalAuth(a *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if id, err := a.Authenticate(token); err == nil {
				c.Set(ctxIdentity, id)
			}
		}
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for WebSocket clients that can't set headers.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// userID returns the authenticated caller. Only valid behind RequireAuth.
func userID(c *gin.Context) string {
	id, _ := identityFrom(c)
	return id.UserID
}

func abortWithError(c *gin.Context, err error) {
	status, _ := api.Status(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.NewErrorBody(err))
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
