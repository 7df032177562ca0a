package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "request_id"
	ownerKey        = "owner_id"
	requestIDHeader = "X-Request-ID"
	ownerHeader     = "X-Owner-ID"
)

// requestID tags each request with an id, reusing the caller's when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request handled",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// requireOwner reads the caller identity. Authentication happens in front of
// this service; the header is trusted as given. Browsers cannot set headers on
// a WebSocket handshake, so the owner_id query parameter is accepted too.
func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(ownerHeader))
		if owner == "" {
			owner = strings.TrimSpace(c.Query(ownerKey))
		}
		if owner == "" {
			fail(c, http.StatusBadRequest, ErrorOwnerMissing, ownerHeader+" header is required")
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}
