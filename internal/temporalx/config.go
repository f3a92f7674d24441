package temporalx

import (
	"strings"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/envutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Config addresses the Temporal cluster that executes calculation runs.
// An empty Address disables Temporal and the in-process worker is used.
type Config struct {
	Address   string
	Namespace string
	// TaskQueue defaults to one queue per deployment environment so staging
	// workers never pick up production runs on a shared cluster.
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	RetentionDays         int

	Dial        Retry
	Ensure      Retry
	WorkerStart Retry
}

// DefaultTaskQueue names the calculation queue of an environment.
func DefaultTaskQueue(environment string) string {
	env := strings.ToLower(strings.TrimSpace(environment))
	if env == "" {
		return "goal-calc"
	}
	return "goal-calc." + env
}

func LoadConfig(log *logger.Logger) Config {
	env := envutil.String("APP_ENV", "development", log)
	cfg := Config{
		Address:   strings.TrimSpace(envutil.String("TEMPORAL_ADDRESS", "", log)),
		Namespace: strings.TrimSpace(envutil.String("TEMPORAL_NAMESPACE", "sectorgoals", log)),
		TaskQueue: strings.TrimSpace(envutil.String("TEMPORAL_TASK_QUEUE", DefaultTaskQueue(env), log)),

		ClientCertPath: strings.TrimSpace(envutil.String("TEMPORAL_CLIENT_CERT_PATH", "", log)),
		ClientKeyPath:  strings.TrimSpace(envutil.String("TEMPORAL_CLIENT_KEY_PATH", "", log)),
		ClientCAPath:   strings.TrimSpace(envutil.String("TEMPORAL_CLIENT_CA_PATH", "", log)),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		RetentionDays:         envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 30, log),

		Dial:        loadRetry("TEMPORAL_DIAL", 5*time.Second, 60*time.Second, log),
		Ensure:      loadRetry("TEMPORAL_NAMESPACE_ENSURE", 0, 10*time.Second, log),
		WorkerStart: loadRetry("TEMPORAL_WORKER_START", 0, 60*time.Second, log),
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "sectorgoals"
	}
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = DefaultTaskQueue(env)
	}
	if cfg.RetentionDays < 1 || cfg.RetentionDays > 365 {
		cfg.RetentionDays = 30
	}
	return cfg
}

// loadRetry reads <prefix>_TIMEOUT_SECONDS, <prefix>_MAX_WAIT_SECONDS,
// <prefix>_BACKOFF_MS and <prefix>_BACKOFF_MAX_MS.
func loadRetry(prefix string, attempt, budget time.Duration, log *logger.Logger) Retry {
	return Retry{
		Attempt: envutil.Seconds(prefix+"_TIMEOUT_SECONDS", attempt, log),
		Budget:  envutil.Seconds(prefix+"_MAX_WAIT_SECONDS", budget, log),
		Base:    millis(prefix+"_BACKOFF_MS", 250, log),
		Max:     millis(prefix+"_BACKOFF_MAX_MS", 5000, log),
	}
}

func millis(key string, def int, log *logger.Logger) time.Duration {
	n := envutil.Int(key, def, log)
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) tlsEnabled() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
