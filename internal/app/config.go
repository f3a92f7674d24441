package app

import (
	"strings"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/data/db"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/envutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx"
	"github.com/yungbote/sectorgoals-backend/internal/upstream"
)

const (
	DispatcherWorker   = "worker"
	DispatcherTemporal = "temporal"
)

type Config struct {
	LogMode     string
	Environment string
	Version     string
	HTTPAddr    string
	ServiceName string
	CORSOrigins []string

	Postgres       db.PostgresConfig
	UpstreamDSN    string
	UpstreamTables upstream.Tables

	RedisAddr       string
	RedisChannel    string
	KafkaBrokers    []string
	KafkaAuditTopic string

	RulesPath string
	CacheTTL  time.Duration

	// Dispatcher selects who executes PENDING runs: the in-process worker
	// pool or Temporal.
	Dispatcher          string
	Temporal            temporalx.Config
	ConnectivityTimeout time.Duration
	SlowCheck           time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development", log),
		Environment: envutil.String("APP_ENV", "development", log),
		Version:     envutil.String("APP_VERSION", "dev", log),
		HTTPAddr:    envutil.String("HTTP_ADDR", ":"+envutil.String("PORT", "8080", log), log),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "sectorgoals", log),
		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS"),

		Postgres:    db.PostgresConfigFromEnv(log),
		UpstreamDSN: envutil.String("UPSTREAM_DSN", "", log),
		UpstreamTables: upstream.Tables{
			Daily:   envutil.String("UPSTREAM_DAILY_TABLE", upstream.DefaultTables.Daily, log),
			Monthly: envutil.String("UPSTREAM_MONTHLY_TABLE", upstream.DefaultTables.Monthly, log),
		},

		RedisAddr:       envutil.String("REDIS_ADDR", "", log),
		RedisChannel:    envutil.String("REDIS_PROGRESS_CHANNEL", notify.DefaultProgressChannel, log),
		KafkaBrokers:    envutil.List("KAFKA_BROKERS"),
		KafkaAuditTopic: envutil.String("KAFKA_AUDIT_TOPIC", notify.DefaultAuditTopic, log),

		RulesPath: envutil.String("RULES_PATH", "", log),
		CacheTTL:  envutil.Seconds("PARAM_CACHE_TTL_SECONDS", 5*time.Minute, log),

		Dispatcher:          strings.ToLower(envutil.String("CALC_DISPATCHER", DispatcherWorker, log)),
		Temporal:            temporalx.LoadConfig(log),
		ConnectivityTimeout: envutil.Seconds("UPSTREAM_CONNECTIVITY_TIMEOUT_SECONDS", 5*time.Second, log),
		SlowCheck:           envutil.Seconds("UPSTREAM_SLOW_CHECK_SECONDS", 2*time.Second, log),
	}
	if cfg.Dispatcher != DispatcherTemporal {
		cfg.Dispatcher = DispatcherWorker
	}
	return cfg
}
