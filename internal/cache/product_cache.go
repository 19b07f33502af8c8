package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

// ProductCache is a redis read-through cache for product detail reads.
// Redis errors are logged and treated as misses; they never fail a read.
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

func NewProductCache(rdb *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// Fetch returns the cached product or calls load and caches its result.
func (c *ProductCache) Fetch(ctx context.Context, id string, load func(context.Context) (*model.Product, error)) (*model.Product, error) {
	key := productKey(id)
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p model.Product
		if uErr := json.Unmarshal(data, &p); uErr == nil {
			c.hits.Add(1)
			return &p, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.Warn("product cache get failed", zap.String("key", key), zap.Error(err))
	}
	c.misses.Add(1)

	c.loads.Add(1)
	p, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if payload, mErr := json.Marshal(p); mErr == nil {
		if sErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); sErr != nil {
			logger.Warn("product cache set failed", zap.String("key", key), zap.Error(sErr))
		}
	}
	return p, nil
}

// Invalidate drops cached entries after stock or catalog writes.
func (c *ProductCache) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("product cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Counters reports cache effectiveness since start.
func (c *ProductCache) Counters() Counters {
	return Counters{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
	}
}

// Counters summarises cache traffic.
type Counters struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Loads  int64 `json:"loads"`
}
