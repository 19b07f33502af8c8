package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/hijabworld/internal/model"
)

func setupCache(t *testing.T) (*ProductCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewProductCache(rdb, time.Minute), mr
}

func TestProductCache_ReadThrough(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (*model.Product, error) {
		calls++
		return &model.Product{ID: "p1", Name: "Chiffon Hijab", Price: decimal.NewFromInt(5000), Stock: 10}, nil
	}

	p, err := c.Fetch(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, "Chiffon Hijab", p.Name)
	assert.True(t, mr.Exists("product:p1"))

	p, err = c.Fetch(ctx, "p1", load)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, Counters{Hits: 1, Misses: 1, Loads: 1}, c.Counters())

	mr.FastForward(2 * time.Minute)
	_, err = c.Fetch(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestProductCache_Invalidate(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, err := c.Fetch(ctx, "p1", func(context.Context) (*model.Product, error) {
		return &model.Product{ID: "p1"}, nil
	})
	require.NoError(t, err)

	c.Invalidate(ctx, "p1", "p2")
	assert.False(t, mr.Exists("product:p1"))
}

func TestProductCache_LoadErrorNotCached(t *testing.T) {
	c, mr := setupCache(t)
	errLoad := errors.New("db down")

	_, err := c.Fetch(context.Background(), "p1", func(context.Context) (*model.Product, error) {
		return nil, errLoad
	})
	assert.ErrorIs(t, err, errLoad)
	assert.False(t, mr.Exists("product:p1"))
}

func TestProductCache_RedisDownFallsBackToLoader(t *testing.T) {
	c, mr := setupCache(t)
	mr.Close()

	p, err := c.Fetch(context.Background(), "p1", func(context.Context) (*model.Product, error) {
		return &model.Product{ID: "p1", Name: "Abaya"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Abaya", p.Name)
}
