package cache

import (
	"context"
	"fmt"
	"time"

	"keystore/internal/config"

	"github.com/redis/go-redis/v9"
)

const staleKeyPrefix = "stale:"

func StaleKey(path string) string {
	return staleKeyPrefix + path
}

// redis.Client のうち使う分
type staleStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ページを古い扱いにする。フロントはキーを見て再生成し、チャンネルを購読して即時反映する
type RedisRevalidator struct {
	rdb     staleStore
	channel string
	ttl     time.Duration
	now     func() time.Time
}

func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedisRevalidator(rdb *redis.Client, cfg config.Redis) *RedisRevalidator {
	return newRedisRevalidator(rdb, cfg)
}

func newRedisRevalidator(rdb staleStore, cfg config.Redis) *RedisRevalidator {
	return &RedisRevalidator{rdb: rdb, channel: cfg.Channel, ttl: cfg.StaleTTL, now: time.Now}
}

func (r *RedisRevalidator) MarkStale(ctx context.Context, path string) error {
	at := r.now().UTC().Format(time.RFC3339Nano)
	if err := r.rdb.Set(ctx, StaleKey(path), at, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", path, err)
	}
	if err := r.rdb.Publish(ctx, r.channel, path).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", path, err)
	}
	return nil
}
