package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/cache"
	"github.com/yungbote/sectorgoals-backend/internal/calculation"
	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	"github.com/yungbote/sectorgoals-backend/internal/jobs/worker"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/observability"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/services"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx/calcrun"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx/temporalworker"
	"github.com/yungbote/sectorgoals-backend/internal/upstream"
	"github.com/yungbote/sectorgoals-backend/internal/validation"
)

type Services struct {
	Cache          cache.ParamCache
	Progress       notify.ProgressSink
	Audit          notify.AuditSink
	Config         services.ConfigurationSource
	ParamStore     services.ParameterVersionStore
	Ranking        services.RankingService
	Periods        services.PeriodService
	Carryover      services.CarryoverLookup
	Validator      validation.PreCalculationValidator
	Orchestrator   calculation.Orchestrator
	Worker         *worker.Worker
	TemporalRunner *temporalworker.Runner
}

func wireSinks(log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (notify.ProgressSink, notify.AuditSink, error) {
	progress := notify.MultiProgress{notify.NewLogProgressSink(log)}
	audit := notify.MultiAudit{notify.NewLogAuditSink(log)}
	if clients.Redis != nil {
		bus, err := notify.NewRedisProgressBus(clients.Redis, cfg.RedisChannel, log)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis progress bus: %w", err)
		}
		progress = append(progress, bus)
	}
	if clients.Kafka != nil {
		audit = append(audit, clients.Kafka)
	}
	if metrics != nil {
		progress = append(progress, metrics)
		audit = append(audit, metrics)
	}
	return progress, audit, nil
}

func wireCache(log *logger.Logger, cfg Config, clients Clients) (cache.ParamCache, error) {
	if clients.Redis == nil {
		return cache.NewMemory(cfg.CacheTTL), nil
	}
	return cache.NewRedis(clients.Redis, cache.DefaultRedisPrefix, cfg.CacheTTL, log)
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	set repos.Set,
	rules *config.Store,
	clients Clients,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")
	var s Services
	var err error

	if s.Progress, s.Audit, err = wireSinks(log, cfg, clients, metrics); err != nil {
		return s, err
	}
	if s.Cache, err = wireCache(log, cfg, clients); err != nil {
		return s, fmt.Errorf("init param cache: %w", err)
	}
	paramCache := s.Cache
	rules.OnChange(func(*config.Rules) {
		if err := paramCache.InvalidateAll(context.Background()); err != nil {
			log.Warn("Param cache flush after rules reload failed", "error", err)
		}
	})

	var src upstream.HistoricalDataSource = clients.Upstream
	s.Config = services.NewConfigurationSource(db, log, set.Parameters, s.Cache)
	s.ParamStore = services.NewParameterVersionStore(db, log, set.Periods, set.Parameters, set.Entries, s.Cache, s.Audit)
	s.Ranking = services.NewRankingService(db, log, set, rules, s.Audit)
	s.Periods = services.NewPeriodService(db, log, set.Periods, s.Ranking, s.Audit)
	s.Carryover = services.NewCarryoverLookup(db, log, set.Periods, set.Entries)
	s.Validator = validation.New(log, set, s.Config, src, rules, validation.Config{
		ConnectivityTimeout: cfg.ConnectivityTimeout,
		SlowCheck:           cfg.SlowCheck,
	})

	s.Orchestrator = calculation.New(db, log, calculation.Deps{
		Repos:     set,
		Params:    s.Config,
		Store:     s.ParamStore,
		Carryover: s.Carryover,
		Validator: s.Validator,
		Upstream:  src,
		Rules:     rules,
		Progress:  s.Progress,
		Audit:     s.Audit,
	})

	switch cfg.Dispatcher {
	case DispatcherTemporal:
		calculation.SetDispatcher(s.Orchestrator, &calcrun.Dispatcher{
			Client:    clients.Temporal,
			TaskQueue: cfg.Temporal.TaskQueue,
			Log:       log,
		})
		if s.TemporalRunner, err = temporalworker.NewRunner(log, clients.Temporal, s.Orchestrator, cfg.Temporal); err != nil {
			return s, fmt.Errorf("init temporal worker: %w", err)
		}
	default:
		s.Worker = worker.NewWorker(db, log, set.Runs, s.Orchestrator, s.Progress)
	}
	return s, nil
}
