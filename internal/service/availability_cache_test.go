package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"campsite/internal/events"
	"campsite/internal/metrics"
	"campsite/internal/models"
	"campsite/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Availability), args.Error(1)
}

func TestCachedAvailability_ReadThrough(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	reader := new(mockReader)
	cache := repository.NewMemoryAvailabilityCache(time.Minute)
	cached := NewCachedAvailability(reader, cache, &logger)

	r := rangeOf(1, 2)
	want := models.Availability{"2024-06-01": true, "2024-06-02": true}
	reader.On("GetAvailability", ctx, r).Return(want, nil).Twice()

	hits := testutil.ToFloat64(metrics.AvailabilityCache(metrics.CacheHit))

	got, err := cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.AvailabilityCache(metrics.CacheHit)))

	bus := events.NewEventBus()
	cached.Subscribe(bus)
	require.NoError(t, bus.PublishJSON(events.EventReservationCancelled, events.ReservationEventPayload{ReservationID: "x"}))

	_, err = cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	reader.AssertNumberOfCalls(t, "GetAvailability", 2)
}

func TestCachedAvailability_SourceError(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	reader := new(mockReader)
	cached := NewCachedAvailability(reader, repository.NewMemoryAvailabilityCache(time.Minute), &logger)

	boom := errors.New("db down")
	reader.On("GetAvailability", ctx, rangeOf(1, 1)).Return(nil, boom).Once()

	_, err := cached.GetAvailability(ctx, rangeOf(1, 1))
	assert.ErrorIs(t, err, boom)
}

func TestCachedAvailability_WithService(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	logger := zerolog.Nop()
	bus := events.NewEventBus()
	svc := NewReservationService(repository.NewMemoryStore(), fixedPolicy(), bus, &logger)
	cached := NewCachedAvailability(svc, repository.NewRedisAvailabilityCache(client, time.Minute), &logger)
	cached.Subscribe(bus)

	r := rangeOf(10, 11)
	before, err := cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.True(t, before["2024-06-10"])

	id, err := svc.Book(ctx, r, "a@x.com", "A")
	require.NoError(t, err)

	after, err := cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.False(t, after["2024-06-10"])

	_, err = svc.Cancel(ctx, id)
	require.NoError(t, err)

	again, err := cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.True(t, again["2024-06-11"])
}

func TestCachedAvailability_CacheDown(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	ctx := context.Background()
	logger := zerolog.Nop()
	reader := new(mockReader)
	want := models.Availability{"2024-06-01": true}
	reader.On("GetAvailability", ctx, rangeOf(1, 1)).Return(want, nil)

	errorsBefore := testutil.ToFloat64(metrics.AvailabilityCache(metrics.CacheError))
	cached := NewCachedAvailability(reader, repository.NewRedisAvailabilityCache(client, time.Minute), &logger)

	got, err := cached.GetAvailability(ctx, rangeOf(1, 1))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(metrics.AvailabilityCache(metrics.CacheError)))
}

type readerFunc func(ctx context.Context, r models.DateRange) (models.Availability, error)

func (f readerFunc) GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error) {
	return f(ctx, r)
}

func TestCachedAvailability_InvalidationDuringRead(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	cache := repository.NewMemoryAvailabilityCache(time.Hour)
	bus := events.NewEventBus()
	r := rangeOf(10, 10)

	var cached *CachedAvailability
	stale := models.Availability{"2024-06-10": true}
	cached = NewCachedAvailability(readerFunc(func(context.Context, models.DateRange) (models.Availability, error) {
		// A booking commits after the read and before the cache write.
		require.NoError(t, bus.PublishJSON(events.EventReservationBooked, events.ReservationEventPayload{ReservationID: "x"}))
		return stale, nil
	}), cache, &logger)
	cached.Subscribe(bus)

	got, err := cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, stale, got)

	_, ok, err := cache.Get(ctx, r)
	require.NoError(t, err)
	assert.False(t, ok, "answer read before the invalidation must not be cached")

	// Without a concurrent mutation the next read is stored as usual.
	reader := new(mockReader)
	fresh := models.Availability{"2024-06-10": false}
	reader.On("GetAvailability", ctx, r).Return(fresh, nil).Once()
	cached.source = reader

	_, err = cached.GetAvailability(ctx, r)
	require.NoError(t, err)
	value, ok, err := cache.Get(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, fresh, value)
}
