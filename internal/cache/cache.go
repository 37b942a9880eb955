package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
	"github.com/redis/go-redis/v9"
)

// AnalysisStatusTTL bounds how long a mirrored analysis status stays in the cache.
const AnalysisStatusTTL = 30 * time.Minute

// Cache is the caching interface. Analysis status lookups and rate-limit
// counters go through here. Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	SetAnalysisStatus(ctx context.Context, alertID uuid.UUID, status models.AnalysisStatus, ttl time.Duration) error
	GetAnalysisStatus(ctx context.Context, alertID uuid.UUID) (models.AnalysisStatus, bool, error)
	DeleteAnalysisStatus(ctx context.Context, alertID uuid.UUID) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Close() error
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) SetAnalysisStatus(ctx context.Context, alertID uuid.UUID, status models.AnalysisStatus, ttl time.Duration) error {
	return c.client.Set(ctx, AnalysisStatusKey(alertID), string(status), ttl).Err()
}

func (c *RedisCache) GetAnalysisStatus(ctx context.Context, alertID uuid.UUID) (models.AnalysisStatus, bool, error) {
	val, err := c.client.Get(ctx, AnalysisStatusKey(alertID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.AnalysisStatus(val), true, nil
}

func (c *RedisCache) DeleteAnalysisStatus(ctx context.Context, alertID uuid.UUID) error {
	return c.client.Del(ctx, AnalysisStatusKey(alertID)).Err()
}

// IncrWithExpiry increments key and starts its expiry window on the first hit.
func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
