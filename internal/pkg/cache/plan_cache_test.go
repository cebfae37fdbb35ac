package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/DocuChat/app/models"
)

func newTestCache(t *testing.T) (*PlanCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPlanCache(client, time.Minute), mr
}

func TestPlanCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	priceID := "price_pro"

	_, ok := c.Get(ctx, "billing:plan:id:1")
	assert.False(t, ok)

	c.Set(ctx, "billing:plan:id:1", &models.Plan{ID: 1, Name: "Pro", Price: decimal.RequireFromString("19.99"), StripePriceID: &priceID})
	assert.True(t, mr.Exists("billing:plan:id:1"))
	assert.Equal(t, time.Minute, mr.TTL("billing:plan:id:1"))

	got, ok := c.Get(ctx, "billing:plan:id:1")
	require.True(t, ok)
	assert.Equal(t, "Pro", got.Name)
	assert.True(t, decimal.RequireFromString("19.99").Equal(got.Price))
	assert.Equal(t, "price_pro", got.PriceRef())

	c.Delete(ctx, "billing:plan:id:1")
	_, ok = c.Get(ctx, "billing:plan:id:1")
	assert.False(t, ok)
}

func TestPlanCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "billing:plan:id:2", &models.Plan{ID: 2, Name: "Team"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "billing:plan:id:2")
	assert.False(t, ok)
}

func TestPlanCacheDropsCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("billing:plan:id:3", "{not json"))

	_, ok := c.Get(context.Background(), "billing:plan:id:3")
	assert.False(t, ok)
	assert.False(t, mr.Exists("billing:plan:id:3"))
}

func TestPlanCacheTreatsOutageAsMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	c := NewPlanCache(client, time.Minute)
	mr.Close()

	_, ok := c.Get(context.Background(), "billing:plan:id:1")
	assert.False(t, ok)
	c.Set(context.Background(), "billing:plan:id:1", &models.Plan{ID: 1})
}
