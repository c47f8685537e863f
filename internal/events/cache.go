// internal/events/cache.go
// Short-lived cache of similar-events listings.

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// cachePrefix is the Redis key prefix for cached listings.
const cachePrefix = "similar_events:"

// Cache stores similar-events listings keyed by subject event and limit.
type Cache interface {
	Get(ctx context.Context, eventID uuid.UUID, limit int) ([]SimilarEvent, bool, error)
	Set(ctx context.Context, eventID uuid.UUID, limit int, list []SimilarEvent) error
}

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache whose entries live for ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(eventID uuid.UUID, limit int) string {
	return fmt.Sprintf("%s%s:%d", cachePrefix, eventID, limit)
}

// Get returns ok=false on a miss.
func (c *RedisCache) Get(ctx context.Context, eventID uuid.UUID, limit int) ([]SimilarEvent, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(eventID, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("similar events cache get: %w", err)
	}

	var list []SimilarEvent
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, fmt.Errorf("similar events cache decode: %w", err)
	}
	return list, true, nil
}

func (c *RedisCache) Set(ctx context.Context, eventID uuid.UUID, limit int, list []SimilarEvent) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("similar events cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(eventID, limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("similar events cache set: %w", err)
	}
	return nil
}

// NoopCache never hits. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, uuid.UUID, int) ([]SimilarEvent, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, uuid.UUID, int, []SimilarEvent) error {
	return nil
}
