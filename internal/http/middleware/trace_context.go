package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
	headerActor     = "X-Actor"

	maxHeaderID = 128
)

// cleanID drops caller supplied ids that are too long or carry characters
// that would break log lines.
func cleanID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxHeaderID {
		return ""
	}
	for _, r := range v {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return v
}

// AttachTraceContext stores trace, request and actor ids on the request
// context. The otel span id wins over a generated one when no header is sent.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			RequestID: cleanID(c.GetHeader(headerRequestID)),
			TraceID:   cleanID(c.GetHeader(headerTraceID)),
			Actor:     cleanID(c.GetHeader(headerActor)),
		}
		if td.RequestID == "" {
			td.RequestID = uuid.New().String()
		}
		if td.TraceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				td.TraceID = sc.TraceID().String()
			} else {
				td.TraceID = uuid.New().String()
			}
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(headerTraceID, td.TraceID)
		c.Writer.Header().Set(headerRequestID, td.RequestID)
		c.Next()
	}
}
