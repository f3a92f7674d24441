package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx"
	"github.com/yungbote/sectorgoals-backend/internal/upstream"
)

// Clients are the external connections; every field is optional except Upstream.
type Clients struct {
	Redis    goredis.UniversalClient
	Kafka    *notify.KafkaAuditSink
	Upstream *upstream.PGSource
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	src, err := upstream.NewPGSource(ctx, cfg.UpstreamDSN, cfg.UpstreamTables, log)
	if err != nil {
		return c, fmt.Errorf("init upstream source: %w", err)
	}
	c.Upstream = src

	if cfg.RedisAddr != "" {
		c.Redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	}

	if len(cfg.KafkaBrokers) > 0 {
		k, err := notify.NewKafkaAuditSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init kafka audit sink: %w", err)
		}
		c.Kafka = k
	}

	if cfg.Dispatcher == DispatcherTemporal {
		tc, err := temporalx.NewClient(ctx, cfg.Temporal, log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		if tc == nil {
			c.Close()
			return Clients{}, fmt.Errorf("CALC_DISPATCHER=temporal requires TEMPORAL_ADDRESS")
		}
		c.Temporal = tc
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Kafka != nil {
		_ = c.Kafka.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Upstream != nil {
		c.Upstream.Close()
	}
}
