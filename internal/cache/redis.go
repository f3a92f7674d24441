package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

const DefaultRedisPrefix = "sectorgoals:param:"

// Redis shares the parameter cache between processes.
type Redis struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb goredis.UniversalClient, prefix string, ttl time.Duration, log *logger.Logger) (*Redis, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{log: log.With("service", "RedisParamCache"), rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (c *Redis) Get(ctx context.Context, key string) (float64, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.log.Warn("Dropping unparsable cached parameter", "key", key, "raw", raw)
		_ = c.rdb.Del(ctx, c.prefix+key).Err()
		return 0, false, nil
	}
	return v, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, value float64) error {
	return c.rdb.Set(ctx, c.prefix+key, strconv.FormatFloat(value, 'f', -1, 64), c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

func (c *Redis) InvalidateAll(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
