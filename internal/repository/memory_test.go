package repository

import (
	"context"
	"testing"
	"time"

	"learnhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	ctx := context.Background()

	t.Run("FlashSale", func(t *testing.T) {
		_, found, err := cache.GetActiveFlashSale(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		sale := &models.FlashSale{ID: 1, Title: "Sale"}
		require.NoError(t, cache.SetActiveFlashSale(ctx, sale, time.Minute))
		got, found, err := cache.GetActiveFlashSale(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, sale, got)

		clock = clock.Add(2 * time.Minute)
		_, found, _ = cache.GetActiveFlashSale(ctx)
		assert.False(t, found, "expired entries are misses")

		require.NoError(t, cache.SetActiveFlashSale(ctx, sale, time.Minute))
		require.NoError(t, cache.InvalidateActiveFlashSale(ctx))
		_, found, _ = cache.GetActiveFlashSale(ctx)
		assert.False(t, found)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := cache.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = cache.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = cache.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.False(t, allowed)

		clock = clock.Add(time.Second + time.Millisecond)
		allowed, _ = cache.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
	})
}
