package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"finbench/internal/logging"
	"finbench/internal/observability"
	id "finbench/internal/utils/id"
)

func resolveLogID(r *http.Request) string {
	for _, header := range []string{"X-Log-Id", "X-Request-Id", "X-Correlation-Id"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	return ""
}

// loggingMiddleware assigns the request a log id, echoes it in X-Log-Id and
// logs method, path, status and latency.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		ctx := c.Request.Context()
		logID := resolveLogID(c.Request)
		if logID == "" {
			logID = id.NewLogID()
		}
		ctx = id.WithLogID(ctx, logID)
		c.Header("X-Log-Id", logID)

		ctx, span := s.tracer.StartSpan(ctx, observability.SpanHTTPServer,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		span.End()
		logging.WithLogID(s.logger, logID).Info("%s %s -> %d (%s) from %s",
			c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Millisecond), c.ClientIP())
	}
}
