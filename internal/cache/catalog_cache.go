package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nomadsim/esim_api/internal/models"
)

const (
	catalogFeedKey     = "catalog:feed"
	catalogLastGoodKey = "catalog:feed:lastgood"
)

// CatalogCache caches the raw offer list fetched from the catalog feed so
// the storefront does not hit the provider on every request. Besides the
// TTL'd entry it keeps a non-expiring "last good" copy used as a fallback
// when the feed is unreachable after the TTL entry has lapsed.
type CatalogCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewCatalogCache creates a CatalogCache with the given freshness TTL.
func NewCatalogCache(redis *RedisClient, ttl time.Duration) *CatalogCache {
	return &CatalogCache{redis: redis, ttl: ttl}
}

// Set stores the raw offers under both the TTL'd key and the last-good key.
func (c *CatalogCache) Set(ctx context.Context, offers []models.CatalogOffer) error {
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("failed to marshal offers: %w", err)
	}
	if err := c.redis.Set(ctx, catalogFeedKey, string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to cache offers: %w", err)
	}
	// Last-good copy has no expiry; it exists purely for feed outages.
	if err := c.redis.Set(ctx, catalogLastGoodKey, string(data), 0); err != nil {
		return fmt.Errorf("failed to cache last-good offers: %w", err)
	}
	return nil
}

// Get returns the fresh (TTL'd) offer list, or a redis.Nil error when the
// entry has expired or was never set.
func (c *CatalogCache) Get(ctx context.Context) ([]models.CatalogOffer, error) {
	return c.get(ctx, catalogFeedKey)
}

// GetLastGood returns the fallback offer list regardless of freshness.
func (c *CatalogCache) GetLastGood(ctx context.Context) ([]models.CatalogOffer, error) {
	return c.get(ctx, catalogLastGoodKey)
}

// Invalidate drops the fresh entry so the next catalog request refetches.
// The last-good copy is kept.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.redis.Delete(ctx, catalogFeedKey)
}

func (c *CatalogCache) get(ctx context.Context, key string) ([]models.CatalogOffer, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var offers []models.CatalogOffer
	if err := json.Unmarshal([]byte(data), &offers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offers: %w", err)
	}
	return offers, nil
}
