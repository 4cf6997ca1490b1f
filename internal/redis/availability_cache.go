package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chargebook/internal/models"
)

// AvailabilityCache briefly caches computed slot grids per station/window.
// Every state-mutating operation invalidates the station's entries, so the
// short TTL only covers read bursts between mutations.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache returns a cache with the given entry TTL.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

// AvailabilityKey builds the cache key for a station/window/slot-size triple.
func AvailabilityKey(stationID int64, from, to time.Time, slotMinutes int) string {
	return fmt.Sprintf("availability:%d:%d:%d:%d", stationID, from.Unix(), to.Unix(), slotMinutes)
}

// Get returns the cached slots for a key, or (nil, false) on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, key string) ([]models.Slot, bool, error) {
	payload, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("availability cache: get: %w", err)
	}
	var slots []models.Slot
	if err := json.Unmarshal([]byte(payload), &slots); err != nil {
		return nil, false, fmt.Errorf("availability cache: decode: %w", err)
	}
	return slots, true, nil
}

// Set caches the slots under the key with the cache TTL.
func (c *AvailabilityCache) Set(ctx context.Context, key string, slots []models.Slot) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("availability cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability cache: set: %w", err)
	}
	return nil
}

// InvalidateStation deletes every cached window for the station.
func (c *AvailabilityCache) InvalidateStation(ctx context.Context, stationID int64) error {
	pattern := fmt.Sprintf("availability:%d:*", stationID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("availability cache: invalidate: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("availability cache: invalidate scan: %w", err)
	}
	return nil
}
