package middleware

import (
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/sectorgoals-backend/internal/observability"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/ctxutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

func observedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs, *ctxutil.TraceData) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	seen := &ctxutil.TraceData{}
	r := gin.New()
	r.Use(AttachTraceContext(), RequestLogger(log))
	r.GET("/healthz", func(c *gin.Context) { c.String(nethttp.StatusOK, "ok") })
	r.GET("/api/runs/:id", func(c *gin.Context) {
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			*seen = *td
		}
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "run not found"})
	})
	return r, logs, seen
}

func TestTraceContextKeepsCallerIDs(t *testing.T) {
	r, _, seen := observedRouter(t)
	req := httptest.NewRequest(nethttp.MethodGet, "/api/runs/abc", nil)
	req.Header.Set("X-Request-Id", "req-42")
	req.Header.Set("X-Actor", "planner@fleet")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("request id: want=req-42 got=%q", got)
	}
	if seen.Actor != "planner@fleet" {
		t.Fatalf("actor: want=planner@fleet got=%q", seen.Actor)
	}
	if seen.TraceID == "" {
		t.Fatalf("trace id not generated")
	}
}

func TestTraceContextReplacesMalformedIDs(t *testing.T) {
	r, _, seen := observedRouter(t)
	req := httptest.NewRequest(nethttp.MethodGet, "/api/runs/abc", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("x", maxHeaderID+1))
	req.Header.Set("X-Actor", "two words")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if seen.RequestID == "" || len(seen.RequestID) > maxHeaderID {
		t.Fatalf("request id: want generated uuid got=%q", seen.RequestID)
	}
	if seen.Actor != "" {
		t.Fatalf("actor: want empty got=%q", seen.Actor)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	r, logs, _ := observedRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, "/api/runs/abc", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("healthz level: want=debug got=%v", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("404 level: want=warn got=%v", entries[1].Level)
	}
	if route := entries[1].ContextMap()["route"]; route != "/api/runs/:id" {
		t.Fatalf("route: want=/api/runs/:id got=%v", route)
	}
}

func TestMetricsNilPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/metrics", func(c *gin.Context) { c.Status(nethttp.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	if w.Code != nethttp.StatusOK {
		t.Fatalf("want=200 got=%d", w.Code)
	}
}

func TestMetricsSkipsScrapes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.String(nethttp.StatusOK, "ok") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `sg_api_requests_total{method="GET",route="/healthz",status="2xx"} 1`) {
		t.Fatalf("healthz request not counted:\n%s", body)
	}
	if strings.Contains(body, `route="/metrics"`) {
		t.Fatalf("scrape counted as API traffic:\n%s", body)
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 404: "4xx", 503: "5xx", 0: "other", 700: "other"} {
		if got := statusClass(code); got != want {
			t.Fatalf("%d: want=%s got=%s", code, want, got)
		}
	}
}
