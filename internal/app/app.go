package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/db"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	httpx "github.com/yungbote/sectorgoals-backend/internal/http"
	httpH "github.com/yungbote/sectorgoals-backend/internal/http/handlers"
	"github.com/yungbote/sectorgoals-backend/internal/observability"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Rules    *config.Store
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *httpx.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading configuration...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	rules := config.NewStore(nil)
	if cfg.RulesPath != "" {
		r, err := config.Load(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		rules.Replace(r)
	}

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	if err := db.EnsureGoalIndexes(theDB); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("postgres indexes: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	metrics := observability.New()
	set := repos.NewSet(theDB, log)
	svcs, err := wireServices(theDB, log, cfg, set, rules, clients, metrics)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		return nil, err
	}

	health := httpH.NewHealthHandler(log, theDB, clients.Upstream, cfg.ConnectivityTimeout)
	if clients.Temporal != nil {
		health.WithCheck("temporal", temporalx.ClusterCheck{Client: clients.Temporal})
	}
	server := httpx.NewServer(httpx.RouterConfig{
		Log:           log,
		ServiceName:   cfg.ServiceName,
		CORSOrigins:   cfg.CORSOrigins,
		Metrics:       metrics,
		HealthHandler: health,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        set,
		Rules:        rules,
		Clients:      clients,
		Services:     svcs,
		Metrics:      metrics,
		Server:       server,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: rules watcher, run executor and
// metrics collector.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Cfg.RulesPath != "" {
		go func() {
			if err := a.Rules.Watch(ctx, a.Cfg.RulesPath, a.Log); err != nil {
				a.Log.Error("Rules watcher stopped", "error", err)
			}
		}()
	}
	a.Metrics.StartRunCollector(ctx, a.Log, a.DB)

	if a.Services.Worker != nil {
		a.Services.Worker.Start(ctx)
	}
	if a.Services.TemporalRunner != nil {
		if err := a.Services.TemporalRunner.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	a.Log.Sync()
}
