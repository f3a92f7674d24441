package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/sectorgoals-backend/internal/observability"
)

// statusClass folds codes into 1xx..5xx to bound label cardinality.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}

// Metrics records request counts and latency per route. Scrapes of /metrics
// are left out so the exporter does not count itself.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.FullPath() == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		m.ObserveAPI(c.Request.Method, c.FullPath(), statusClass(c.Writer.Status()), time.Since(start))
	}
}
