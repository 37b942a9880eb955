package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process Cache used when no Redis URL is configured.
// Entries are lost on restart and are not shared between replicas.
type MemoryCache struct {
	items *gocache.Cache
	// mu serializes counter creation so two first hits can't both start at 1.
	mu sync.Mutex
}

// NewMemoryCache creates a MemoryCache that sweeps expired entries every cleanupInterval.
// A zero interval disables the sweeper goroutine; expired entries are still never returned.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) SetAnalysisStatus(_ context.Context, alertID uuid.UUID, status models.AnalysisStatus, ttl time.Duration) error {
	c.items.Set(AnalysisStatusKey(alertID), status, ttl)
	return nil
}

func (c *MemoryCache) GetAnalysisStatus(_ context.Context, alertID uuid.UUID) (models.AnalysisStatus, bool, error) {
	v, ok := c.items.Get(AnalysisStatusKey(alertID))
	if !ok {
		return "", false, nil
	}
	status, ok := v.(models.AnalysisStatus)
	return status, ok, nil
}

func (c *MemoryCache) DeleteAnalysisStatus(_ context.Context, alertID uuid.UUID) error {
	c.items.Delete(AnalysisStatusKey(alertID))
	return nil
}

func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.items.Add(key, int64(1), expiry); err == nil {
		return 1, nil
	}
	n, err := c.items.IncrementInt64(key, 1)
	if err != nil {
		// Expired between Add and Increment.
		c.items.Set(key, int64(1), expiry)
		return 1, nil
	}
	return n, nil
}

// Close flushes all entries.
func (c *MemoryCache) Close() error {
	c.items.Flush()
	return nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
