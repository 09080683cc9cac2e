package middleware

import (
	"net/http"
	"time"

	"course-enrollment/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IdempotentReplayedHeader marks a response served from the idempotency store.
const IdempotentReplayedHeader = "Idempotent-Replayed"

// quietPaths are polled by orchestrators and scrapers and log at debug level.
var quietPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/live":    true,
	"/metrics": true,
}

// Logger writes one access line per request carrying the caller, the
// idempotency key and whether the body was replayed from a stored response.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(accessFields(c, time.Since(start)))
		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			entry.WithField("error", c.Errors.String()).Error("Request completed with errors")
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed with server error")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed with client error")
		case c.Writer.Header().Get(IdempotentReplayedHeader) == "true":
			entry.Info("Request replayed from idempotency store")
		case quietPaths[c.Request.URL.Path]:
			entry.Debug("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

func accessFields(c *gin.Context, latency time.Duration) logrus.Fields {
	path := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		path += "?" + raw
	}

	fields := logrus.Fields{
		"status_code": c.Writer.Status(),
		"latency":     latency,
		"client_ip":   c.ClientIP(),
		"method":      c.Request.Method,
		"path":        path,
		"request_id":  c.GetString(RequestIDKey),
	}
	if actor, ok := CurrentActor(c); ok {
		fields["user_id"] = actor.UserID
		fields["role"] = actor.Role
	}
	if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
		fields["idempotency_key"] = key
	}
	if c.Writer.Header().Get(IdempotentReplayedHeader) == "true" {
		fields["replayed"] = true
	}
	return fields
}
