package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/infrastructure/config"
)

// SnapshotCache keeps today's snapshots in redis so the read path does not
// hit postgres on every request. Entries expire at the next UTC midnight:
// once the date rolls over a cached snapshot must never be served as
// current. The clock is injected so tests control the TTL boundary.
type SnapshotCache struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
	logger *zap.Logger
}

// NewSnapshotCache connects to redis and returns the cache.
func NewSnapshotCache(cfg config.RedisConfig, logger *zap.Logger) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &SnapshotCache{
		client: client,
		prefix: "folio:snapshot:",
		clock:  time.Now,
		logger: logger,
	}, nil
}

// WithClock replaces the cache's clock.
func (c *SnapshotCache) WithClock(clock func() time.Time) *SnapshotCache {
	c.clock = clock
	return c
}

func (c *SnapshotCache) key(basketID uuid.UUID, date time.Time) string {
	return c.prefix + basketID.String() + ":" + date.UTC().Format("2006-01-02")
}

// Get returns the cached snapshot for the basket and day, or (nil, nil) on
// a miss.
func (c *SnapshotCache) Get(ctx context.Context, basketID uuid.UUID, date time.Time) (*entities.PerformanceSnapshot, error) {
	raw, err := c.client.Get(ctx, c.key(basketID, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap entities.PerformanceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// A corrupt entry is a miss; the store remains authoritative.
		c.logger.Warn("dropping undecodable cached snapshot",
			zap.String("basket_id", basketID.String()),
			zap.Error(err),
		)
		return nil, nil
	}
	return &snap, nil
}

// Set stores the snapshot under its basket and calculation date, expiring
// at the next UTC midnight.
func (c *SnapshotCache) Set(ctx context.Context, snap *entities.PerformanceSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ttl := c.untilMidnight()
	return c.client.Set(ctx, c.key(snap.BasketID, snap.CalculationDate), raw, ttl).Err()
}

// Close releases the redis connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

func (c *SnapshotCache) untilMidnight() time.Duration {
	now := c.clock().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	ttl := midnight.Sub(now)
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
