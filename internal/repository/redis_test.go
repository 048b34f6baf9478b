package repository

import (
	"context"
	"testing"
	"time"

	"campsite/internal/config"
	"campsite/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange() models.DateRange {
	return models.NewDateRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
}

func TestRedisAvailabilityCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	cache := NewRedisAvailabilityCache(client, time.Minute)
	ctx := context.Background()
	r := testRange()
	want := models.Availability{"2024-06-01": true, "2024-06-02": false}

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, r)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, r, want))

		got, ok, err := cache.Get(ctx, r)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		require.NoError(t, cache.InvalidateAll(ctx))

		_, ok, err := cache.Get(ctx, r)
		require.NoError(t, err)
		assert.False(t, ok)

		gen, err := client.Get(ctx, availabilityPrefix+":gen").Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(1), gen)
	})

	t.Run("TTL", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, r, want))
		s.FastForward(2 * time.Minute)

		_, ok, err := cache.Get(ctx, r)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisAvailabilityCache_Errors(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	cache := NewRedisAvailabilityCache(client, time.Minute)
	ctx := context.Background()

	s.Close()

	_, _, err = cache.Get(ctx, testRange())
	assert.Error(t, err)
	assert.Error(t, cache.Set(ctx, testRange(), models.Availability{}))
	assert.Error(t, cache.InvalidateAll(ctx))
	assert.Error(t, Ping(ctx, client))

	nilCache := NewRedisAvailabilityCache(nil, time.Minute)
	_, _, err = nilCache.Get(ctx, testRange())
	assert.Error(t, err)
	assert.NoError(t, Close(nil))
}
