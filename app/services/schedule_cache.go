// Package services provides external service integrations and technical concerns like caching and tokens
package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/redis/go-redis/v9"
)

const (
	resolutionKeyPrefix = "spotgrid:resolution"

	// Sentinel value for a cached no-coverage resolution. Caching the miss
	// matters: markets with schedule gaps would otherwise hit the store for
	// every one of their spots.
	noCoverageValue = "none"
)

// RedisScheduleCache caches grid resolutions in Redis so repeated batch runs
// and multiple engine instances share one warm schedule view. Every cache
// failure degrades to a miss; the store stays the source of truth.
type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisScheduleCache creates a Redis-backed schedule cache
func NewRedisScheduleCache(client *redis.Client, ttl time.Duration, logger *log.Logger) businessflow.ScheduleCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisScheduleCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetResolution returns the cached resolution for (market, date), if any
func (c *RedisScheduleCache) GetResolution(ctx context.Context, marketID uint, date time.Time) (businessflow.GridResolution, bool) {
	val, err := c.client.Get(ctx, resolutionKey(marketID, date)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("schedule cache read failed for market %d: %v", marketID, err)
		}
		return businessflow.GridResolution{}, false
	}

	if val == noCoverageValue {
		return businessflow.GridResolution{NoCoverage: true}, true
	}

	gridID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		c.logger.Printf("schedule cache holds malformed value %q for market %d", val, marketID)
		return businessflow.GridResolution{}, false
	}
	return businessflow.GridResolution{GridID: uint(gridID)}, true
}

// SetResolution caches the resolution for (market, date). The key is also
// tracked in a per-market set so invalidation can delete exactly the keys
// that exist without scanning the keyspace.
func (c *RedisScheduleCache) SetResolution(ctx context.Context, marketID uint, date time.Time, res businessflow.GridResolution) {
	val := noCoverageValue
	if res.Covered() {
		val = strconv.FormatUint(uint64(res.GridID), 10)
	}

	key := resolutionKey(marketID, date)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, val, c.ttl)
		pipe.SAdd(ctx, marketKeySet(marketID), key)
		pipe.Expire(ctx, marketKeySet(marketID), c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Printf("schedule cache write failed for market %d: %v", marketID, err)
	}
}

// InvalidateMarket drops every cached resolution for a market via its tracked
// key set. The error is returned to the caller: a failed invalidation means
// stale resolutions may be served until TTL expiry, and the schedule writer
// is the one that can surface that.
func (c *RedisScheduleCache) InvalidateMarket(ctx context.Context, marketID uint) error {
	setKey := marketKeySet(marketID)
	keys, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("schedule cache key lookup failed for market %d: %w", marketID, err)
	}

	keys = append(keys, setKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("schedule cache invalidation failed for market %d: %w", marketID, err)
	}
	return nil
}

func resolutionKey(marketID uint, date time.Time) string {
	return fmt.Sprintf("%s:%d:%s", resolutionKeyPrefix, marketID, models.DateOf(date).Format("2006-01-02"))
}

func marketKeySet(marketID uint) string {
	return fmt.Sprintf("%s:%d:keys", resolutionKeyPrefix, marketID)
}
