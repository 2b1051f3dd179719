package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/doc-extractor/internal/entity"
)

const keyPrefix = "dx:result:"

type redisEntry struct {
	Result     *entity.ExtractionResult `json:"result"`
	InsertedAt time.Time                `json:"inserted_at"`
}

// RedisCache shares results between replicas. Entries carry their insertion time and
// are checked against the injected clock as well as expired by redis itself.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    Clock
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, clock Clock, logger *slog.Logger) *RedisCache {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, now: clock, logger: logger}
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*entity.ExtractionResult, bool) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	var e redisEntry
	if err := json.Unmarshal(val, &e); err != nil || e.Result == nil {
		c.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		c.client.Del(ctx, keyPrefix+key)
		return nil, false
	}
	if expired(e.InsertedAt, c.now(), c.ttl) {
		c.client.Del(ctx, keyPrefix+key)
		return nil, false
	}
	return e.Result, true
}

func (c *RedisCache) Put(ctx context.Context, key string, result *entity.ExtractionResult) {
	if result == nil {
		return
	}
	data, err := json.Marshal(redisEntry{Result: result, InsertedAt: c.now()})
	if err != nil {
		c.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache put failed", "key", key, "error", err)
	}
}
