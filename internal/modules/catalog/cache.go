package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedPrices is a cache-aside view of product prices backed by Redis.
// Concurrent misses for the same product collapse into one repository read,
// and a miss re-checks the repository after populating Redis.
// Redis failures degrade to direct reads.
type CachedPrices struct {
	repo   Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

func NewCachedPrices(repo Repository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedPrices {
	return &CachedPrices{repo: repo, rdb: rdb, ttl: ttl, logger: logger}
}

func priceKey(id uuid.UUID) string { return "catalog:price:" + id.String() }

func (c *CachedPrices) CurrentPrice(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	key := priceKey(id)
	if price, ok := c.lookup(ctx, key); ok {
		return price, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		price, err := priceOf(ctx, c.repo, id)
		if err != nil {
			return decimal.Zero, err
		}
		if err := c.rdb.Set(ctx, key, price.StringFixed(2), c.ttl).Err(); err != nil {
			c.logger.Warn("price cache write failed", zap.String("product_id", id.String()), zap.Error(err))
			return price, nil
		}
		// An update that committed between the read and the write has already
		// run its eviction, so the value just written may be stale. Read again
		// and evict on any difference.
		latest, err := priceOf(ctx, c.repo, id)
		if err != nil || !latest.Equal(price) {
			c.Invalidate(ctx, id)
			if err != nil {
				return decimal.Zero, err
			}
		}
		return latest, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (c *CachedPrices) lookup(ctx context.Context, key string) (decimal.Decimal, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
		}
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// Invalidate evicts a product's cached price.
func (c *CachedPrices) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.rdb.Del(ctx, priceKey(id)).Err(); err != nil {
		c.logger.Warn("price cache evict failed", zap.String("product_id", id.String()), zap.Error(err))
	}
}
