package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"userdir/internal/logger"
	"userdir/internal/metrics"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger propagates or generates a request id, injects a scoped
// logger into the request context and records one log line and one metrics
// observation per request.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(RequestIDHeader, rid)

		reqLog := logger.L().With(
			logger.RequestID(rid),
			logger.Method(c.Request.Method),
			logger.Path(c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(logger.ToContext(c.Request.Context(), reqLog))

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, status, dur)

		// Handlers may have replaced the request logger with a user-tagged one.
		logger.From(c.Request.Context()).Info("request completed",
			logger.Status(status),
			logger.Bytes(max(c.Writer.Size(), 0)),
			logger.Duration(dur),
			logger.ClientIP(c.ClientIP()),
		)
	}
}
