package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/sectorgoals-backend/internal/http/handlers"
	httpMW "github.com/yungbote/sectorgoals-backend/internal/http/middleware"
	"github.com/yungbote/sectorgoals-backend/internal/observability"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log           *logger.Logger
	ServiceName   string
	CORSOrigins   []string
	Metrics       *observability.Metrics
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	return r
}
