package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/envutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Metrics holds the API and calculation run collectors on a private registry.
// All methods are nil-safe so callers never check whether metrics are enabled.
type Metrics struct {
	reg *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	runsFinished *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	auditEvents  *prometheus.CounterVec
	sectorFails  prometheus.Counter
	runsByStatus *prometheus.GaugeVec

	mu      sync.Mutex
	started map[uuid.UUID]time.Time
}

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

// New returns nil when METRICS_ENABLED is off.
func New() *Metrics {
	if !Enabled() {
		return nil
	}
	m := newMetrics()
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func newMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sg_api_requests_total",
			Help: "API requests by method, route and status class.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sg_api_request_duration_seconds",
			Help:    "API request latency in seconds by method and route.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sg_calculation_runs_finished_total",
			Help: "Calculation runs reaching a terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sg_calculation_run_duration_seconds",
			Help:    "Wall time from first progress event to terminal status.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"status"}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sg_audit_events_total",
			Help: "Audit events emitted by kind.",
		}, []string{"kind"}),
		sectorFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sg_calculation_sector_failures_total",
			Help: "Sectors that failed inside otherwise finished runs.",
		}),
		runsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sg_calculation_runs",
			Help: "Calculation runs currently stored, by status.",
		}, []string{"status"}),
		started: map[uuid.UUID]time.Time{},
	}
	m.reg.MustRegister(
		m.apiRequests,
		m.apiLatency,
		m.runsFinished,
		m.runDuration,
		m.auditEvents,
		m.sectorFails,
		m.runsByStatus,
	)
	return m
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// Audit implements notify.AuditSink.
func (m *Metrics) Audit(_ context.Context, ev notify.AuditEvent) error {
	if m == nil {
		return nil
	}
	m.auditEvents.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Kind == notify.AuditRunCompleted {
		if n, ok := ev.Data["failed"].(int); ok && n > 0 {
			m.sectorFails.Add(float64(n))
		}
	}
	return nil
}

// Progress implements notify.ProgressSink. The first event seen for a run
// starts its clock; a terminal status stops it.
func (m *Metrics) Progress(_ context.Context, ev notify.ProgressEvent) error {
	if m == nil {
		return nil
	}
	status := goals.RunStatus(ev.Status)
	m.mu.Lock()
	start, seen := m.started[ev.RunID]
	if !seen && status.InFlight() {
		m.started[ev.RunID] = ev.At
	}
	if status.Terminal() {
		delete(m.started, ev.RunID)
	}
	m.mu.Unlock()

	switch status {
	case goals.RunCompleted, goals.RunCompletedWithWarnings, goals.RunError, goals.RunCancelled:
		m.runsFinished.WithLabelValues(ev.Status).Inc()
		if seen && !ev.At.Before(start) {
			m.runDuration.WithLabelValues(ev.Status).Observe(ev.At.Sub(start).Seconds())
		}
	case goals.RunApproved, goals.RunSuperseded:
		m.runsFinished.WithLabelValues(ev.Status).Inc()
	}
	return nil
}

// StartRunCollector refreshes the per-status run gauge every
// METRICS_SCRAPE_INTERVAL_SECONDS until ctx is done.
func (m *Metrics) StartRunCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second, log)
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectRuns(ctx, db); err != nil && log != nil {
					log.Warn("metrics: run status query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectRuns(ctx context.Context, db *gorm.DB) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&goals.CalculationRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	m.runsByStatus.Reset()
	for _, s := range goals.InFlightStatuses {
		m.runsByStatus.WithLabelValues(string(s)).Set(0)
	}
	for _, s := range goals.TerminalStatuses {
		m.runsByStatus.WithLabelValues(string(s)).Set(0)
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.runsByStatus.WithLabelValues(status).Set(float64(row.Count))
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format. A nil
// Metrics answers 503.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
