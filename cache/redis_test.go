package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	require.NoError(t, err)

	redisCache, err := NewRedisCache(config.RedisConfig{
		Host:    server.Host(),
		Port:    port,
		Enabled: true,
		TTL:     5 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisCache.Close() })

	return redisCache, server
}

func TestSetAndGetSummary(t *testing.T) {
	redisCache, _ := newTestCache(t)
	ctx := context.Background()

	summary := models.OrderSummary{
		OrderID:     "order-1",
		CustomerID:  "customer-1",
		Status:      "Paid",
		TotalAmount: 3500,
		Currency:    "USD",
	}

	key := redisCache.SummaryKey("order-1")
	require.NoError(t, redisCache.Set(ctx, key, summary))

	var cached models.OrderSummary
	require.NoError(t, redisCache.Get(ctx, key, &cached))
	require.Equal(t, summary.OrderID, cached.OrderID)
	require.Equal(t, summary.TotalAmount, cached.TotalAmount)
}

func TestGetMissingKeyReturnsCacheMiss(t *testing.T) {
	redisCache, _ := newTestCache(t)

	var cached models.OrderSummary
	err := redisCache.Get(context.Background(), redisCache.SummaryKey("missing"), &cached)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestDeleteInvalidatesKey(t *testing.T) {
	redisCache, _ := newTestCache(t)
	ctx := context.Background()

	key := redisCache.SummaryKey("order-1")
	require.NoError(t, redisCache.Set(ctx, key, models.OrderSummary{OrderID: "order-1"}))
	require.NoError(t, redisCache.Delete(ctx, key))

	var cached models.OrderSummary
	require.ErrorIs(t, redisCache.Get(ctx, key, &cached), ErrCacheMiss)
}

func TestEntriesExpire(t *testing.T) {
	redisCache, server := newTestCache(t)
	ctx := context.Background()

	key := redisCache.SummaryKey("order-1")
	require.NoError(t, redisCache.Set(ctx, key, models.OrderSummary{OrderID: "order-1"}))

	server.FastForward(6 * time.Minute)

	var cached models.OrderSummary
	require.ErrorIs(t, redisCache.Get(ctx, key, &cached), ErrCacheMiss)
}

func TestDisabledCacheIsInert(t *testing.T) {
	redisCache, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	ctx := context.Background()

	require.False(t, redisCache.Enabled())
	require.NoError(t, redisCache.Set(ctx, "key", "value"))
	require.NoError(t, redisCache.Delete(ctx, "key"))

	var out string
	require.ErrorIs(t, redisCache.Get(ctx, "key", &out), ErrCacheMiss)
}

func TestSummaryKeyFormat(t *testing.T) {
	redisCache := &RedisCache{}
	require.Equal(t, "order-summary:order-1", redisCache.SummaryKey("order-1"))
}
