package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campsite/internal/api"
	"campsite/internal/config"
	"campsite/internal/domain"
	"campsite/internal/models"
	"campsite/internal/repository"
	"campsite/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	logger := zerolog.Nop()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := service.NewPolicyValidator(config.PolicyConfig{}).WithClock(func() time.Time { return now })
	svc := service.NewReservationService(repository.NewMemoryStore(), policy, nil, &logger)

	server := api.NewHTTPServer(config.APIConfig{}, svc, svc, policy, nil, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func june(day int) time.Time {
	return time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Book(ctx, models.NewDateRange(june(10), june(12)), "a@x.com", "Ann")
	require.NoError(t, err)

	res, err := c.Reservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12"}, res.Dates)
	assert.Equal(t, "Ann", res.Guest.Name)

	start, end := june(14), june(15)
	require.NoError(t, c.Update(ctx, id, domain.UpdateRequest{Start: &start, End: &end, Name: "Ann B"}))

	availability, err := c.GetAvailability(ctx, models.NewDateRange(june(10), june(15)))
	require.NoError(t, err)
	assert.True(t, availability["2024-06-10"])
	assert.False(t, availability["2024-06-14"])

	result, err := c.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &domain.CancelResult{AllocationsDeleted: 2, LinkDeleted: true, GuestDeleted: true}, result)
}

func TestClientErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Book(ctx, models.NewDateRange(june(10), june(11)), "a@x.com", "Ann")
	require.NoError(t, err)

	_, err = c.Book(ctx, models.NewDateRange(june(11), june(12)), "b@x.com", "Bob")
	assert.ErrorIs(t, err, domain.ErrDateConflict)
	assert.NotErrorIs(t, err, domain.ErrGuestConflict)

	_, err = c.Book(ctx, models.NewDateRange(june(20), june(20)), "a@x.com", "Ann")
	assert.ErrorIs(t, err, domain.ErrGuestConflict)

	_, err = c.Book(ctx, models.NewDateRange(june(20), june(25)), "c@x.com", "Cid")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, api.CodeNotFound, apiErr.Code)
}

func TestClientRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := newTestClient(t)
	c.UseRedisCache(rdb, time.Hour)
	ctx := context.Background()
	r := models.NewDateRange(june(10), june(12))

	first, err := c.GetAvailability(ctx, r)
	require.NoError(t, err)
	assert.True(t, first["2024-06-11"])
	assert.True(t, mr.Exists(cachePrefix+"0:"+r.String()))

	t.Run("OwnBookInvalidates", func(t *testing.T) {
		id, err := c.Book(ctx, r, "a@x.com", "Ann")
		require.NoError(t, err)

		got, err := c.GetAvailability(ctx, r)
		require.NoError(t, err)
		assert.False(t, got["2024-06-11"])

		start, end := june(11), june(12)
		require.NoError(t, c.Update(ctx, id, domain.UpdateRequest{Start: &start, End: &end}))
		got, err = c.GetAvailability(ctx, r)
		require.NoError(t, err)
		assert.True(t, got["2024-06-10"])
		assert.False(t, got["2024-06-12"])

		_, err = c.Cancel(ctx, id)
		require.NoError(t, err)
		got, err = c.GetAvailability(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, models.Availability{"2024-06-10": true, "2024-06-11": true, "2024-06-12": true}, got)
	})

	t.Run("FailedBookKeepsCache", func(t *testing.T) {
		gen, err := rdb.Get(ctx, cacheGenerationKey).Int64()
		require.NoError(t, err)

		_, err = c.Book(ctx, models.NewDateRange(june(20), june(25)), "b@x.com", "Bob")
		require.ErrorIs(t, err, domain.ErrValidation)

		after, err := rdb.Get(ctx, cacheGenerationKey).Int64()
		require.NoError(t, err)
		assert.Equal(t, gen, after)
	})

	t.Run("OtherWriterTrailsByTTL", func(t *testing.T) {
		_, err := c.GetAvailability(ctx, r)
		require.NoError(t, err)

		other := New(c.baseURL)
		_, err = other.Book(ctx, r, "c@x.com", "Cid")
		require.NoError(t, err)

		cached, err := c.GetAvailability(ctx, r)
		require.NoError(t, err)
		assert.True(t, cached["2024-06-11"])

		mr.FastForward(2 * time.Hour)
		fresh, err := c.GetAvailability(ctx, r)
		require.NoError(t, err)
		assert.False(t, fresh["2024-06-11"])
	})
}
