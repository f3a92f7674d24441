package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/http/response"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// ConnChecker is the connectivity half of the historical data source.
type ConnChecker interface {
	TestConnectivity(ctx context.Context) (time.Duration, error)
}

type HealthHandler struct {
	log      *logger.Logger
	db       *gorm.DB
	upstream ConnChecker
	extra    []namedCheck
	timeout  time.Duration
}

type namedCheck struct {
	name  string
	check ConnChecker
}

func NewHealthHandler(log *logger.Logger, db *gorm.DB, upstream ConnChecker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{log: log.With("handler", "HealthHandler"), db: db, upstream: upstream, timeout: timeout}
}

// WithCheck adds a named readiness check, such as the Temporal cluster when
// runs are dispatched there.
func (h *HealthHandler) WithCheck(name string, p ConnChecker) *HealthHandler {
	if p != nil {
		h.extra = append(h.extra, namedCheck{name: name, check: p})
	}
	return h
}

// HealthCheck is liveness only.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type checkStatus struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type readiness struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]checkStatus `json:"checks"`
}

// Ready pings the goals database, checks the upstream source and runs any
// extra checks.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out := readiness{Ready: true, Checks: map[string]checkStatus{}}
	record := func(name string, latency time.Duration, err error) {
		st := checkStatus{OK: err == nil, LatencyMS: latency.Milliseconds()}
		if err != nil {
			st.Error = err.Error()
			out.Ready = false
			h.log.Warn("Readiness check failed", "check", name, "error", err)
		}
		out.Checks[name] = st
	}

	if h.db != nil {
		start := time.Now()
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		record("database", time.Since(start), err)
	}
	if h.upstream != nil {
		latency, err := h.upstream.TestConnectivity(ctx)
		record("upstream", latency, err)
	}
	for _, p := range h.extra {
		latency, err := p.check.TestConnectivity(ctx)
		record(p.name, latency, err)
	}

	if !out.Ready {
		c.JSON(http.StatusServiceUnavailable, out)
		return
	}
	response.RespondOK(c, out)
}
