package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
)

func scrape(t *testing.T, m *Metrics) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Code, w.Body.String()
}

func TestMetricsTrackRunLifecycle(t *testing.T) {
	m := newMetrics()
	ctx := context.Background()
	runID := uuid.New()
	t0 := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	for i, st := range []goals.RunStatus{goals.RunPending, goals.RunLoadingData, goals.RunSaving, goals.RunCompleted} {
		_ = m.Progress(ctx, notify.ProgressEvent{RunID: runID, Status: string(st), At: t0.Add(time.Duration(i) * 10 * time.Second)})
	}
	if got := promtest.ToFloat64(m.runsFinished.WithLabelValues(string(goals.RunCompleted))); got != 1 {
		t.Fatalf("finished: want=1 got=%v", got)
	}
	if len(m.started) != 0 {
		t.Fatalf("terminal run must release its clock, got=%d", len(m.started))
	}

	_ = m.Progress(ctx, notify.ProgressEvent{RunID: runID, Status: string(goals.RunApproved), At: t0.Add(time.Hour)})
	if got := promtest.ToFloat64(m.runsFinished.WithLabelValues(string(goals.RunApproved))); got != 1 {
		t.Fatalf("approved: want=1 got=%v", got)
	}

	_, out := scrape(t, m)
	if !strings.Contains(out, `sg_calculation_run_duration_seconds_count{status="COMPLETED"} 1`) {
		t.Fatalf("missing completed duration sample in:\n%s", out)
	}
	if !strings.Contains(out, `sg_calculation_run_duration_seconds_sum{status="COMPLETED"} 30`) {
		t.Fatalf("completed duration: want=30s in:\n%s", out)
	}
	if strings.Contains(out, `sg_calculation_run_duration_seconds_count{status="APPROVED"}`) {
		t.Fatalf("approval must not add a duration sample:\n%s", out)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/healthz", "200", time.Millisecond)
	if err := m.Audit(context.Background(), notify.AuditEvent{Kind: notify.AuditRunCompleted}); err != nil {
		t.Fatalf("nil audit: %v", err)
	}
	if err := m.Progress(context.Background(), notify.ProgressEvent{}); err != nil {
		t.Fatalf("nil progress: %v", err)
	}
	if code, _ := scrape(t, m); code != http.StatusServiceUnavailable {
		t.Fatalf("nil handler: want=503 got=%d", code)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := newMetrics()
	m.ObserveAPI("GET", "/readyz", "200", 30*time.Millisecond)
	_ = m.Audit(context.Background(), notify.AuditEvent{Kind: notify.AuditRunCompleted, Data: map[string]interface{}{"failed": 2}})
	_ = m.Audit(context.Background(), notify.AuditEvent{Kind: notify.AuditParameterVersion})

	if got := promtest.ToFloat64(m.sectorFails); got != 2 {
		t.Fatalf("sector failures: want=2 got=%v", got)
	}
	code, out := scrape(t, m)
	if code != http.StatusOK {
		t.Fatalf("scrape: want=200 got=%d", code)
	}
	for _, want := range []string{
		"# TYPE sg_api_requests_total counter",
		`sg_api_requests_total{method="GET",route="/readyz",status="200"} 1`,
		`sg_api_request_duration_seconds_bucket{method="GET",route="/readyz",le="0.05"} 1`,
		`sg_api_request_duration_seconds_bucket{method="GET",route="/readyz",le="0.025"} 0`,
		`sg_audit_events_total{kind="run.completed"} 1`,
		`sg_audit_events_total{kind="parameter.version"} 1`,
		"sg_calculation_sector_failures_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("a=1, b = 2 ,broken,=x,c=")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("unexpected headers: %v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty input must give nil")
	}
}
