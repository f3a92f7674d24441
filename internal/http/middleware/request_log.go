package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/ctxutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// pollRoutes are polled by orchestrators and scrapers every few seconds.
var pollRoutes = map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}

// RequestLogger logs one line per request. Successful poll traffic is kept
// at debug level; everything else logs at info, warn or error by status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
			if td.Actor != "" {
				fields = append(fields, "actor", td.Actor)
			}
		}
		switch {
		case status >= 500:
			log.Error("HTTP request failed", fields...)
		case status >= 400:
			log.Warn("HTTP request rejected", fields...)
		case pollRoutes[route]:
			log.Debug("HTTP poll", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
