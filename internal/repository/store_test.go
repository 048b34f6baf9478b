package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryStore_Allocations(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := uuid.New()
	require.NoError(t, store.InsertAllocations(ctx, models.AllocationsFor(first, models.NewDateRange(day(10), day(12)))))

	t.Run("InRange", func(t *testing.T) {
		allocs, err := store.AllocationsInRange(ctx, day(11), day(20))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(11), day(12)}, models.AllocationDates(allocs))
	})

	t.Run("DateTakenIsAtomic", func(t *testing.T) {
		other := uuid.New()
		err := store.InsertAllocations(ctx, models.AllocationsFor(other, models.NewDateRange(day(12), day(13))))
		assert.ErrorIs(t, err, domain.ErrDateTaken)

		allocs, err := store.AllocationsByReservation(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, allocs)
	})

	t.Run("DeleteReusesSlots", func(t *testing.T) {
		n, err := store.DeleteAllocationsByReservation(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.Len(t, store.state.free, 3)

		second := uuid.New()
		require.NoError(t, store.InsertAllocations(ctx, models.AllocationsFor(second, models.NewDateRange(day(11), day(11)))))
		assert.Len(t, store.state.arena, 3)
		assert.Len(t, store.state.free, 2)

		allocs, err := store.AllocationsByReservation(ctx, second)
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, day(11), allocs[0].Date)
	})
}

func TestMemoryStore_GuestsAndLinks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	g := &models.Guest{Email: "a@x.io", Name: "Ann"}
	require.NoError(t, store.InsertGuest(ctx, g))
	assert.NotEqual(t, uuid.Nil, g.ID)

	found, err := store.FindGuestByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	require.NotNil(t, found)

	found.Name = "Anna"
	require.NoError(t, store.UpdateGuest(ctx, found))
	byID, err := store.FindGuestByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", byID.Name)

	resID := uuid.New()
	require.NoError(t, store.InsertLink(ctx, &models.Link{ReservationID: resID, GuestID: g.ID}))
	link, err := store.FindLink(ctx, resID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, link.GuestID)

	require.NoError(t, store.DeleteLink(ctx, resID))
	require.NoError(t, store.DeleteGuest(ctx, g.ID))

	link, err = store.FindLink(ctx, resID)
	require.NoError(t, err)
	assert.Nil(t, link)
	byID, err = store.FindGuestByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, byID)
	require.NoError(t, store.Close())
}

func TestMemoryStore_WithTx(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx domain.Tables) error {
		require.NoError(t, tx.InsertAllocations(ctx, models.AllocationsFor(id, models.NewDateRange(day(1), day(2)))))
		require.NoError(t, tx.InsertGuest(ctx, &models.Guest{Email: "t@x.io"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	allocs, err := store.AllocationsByReservation(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, allocs)
	g, err := store.FindGuestByEmail(ctx, "t@x.io")
	require.NoError(t, err)
	assert.Nil(t, g)

	require.NoError(t, store.WithTx(ctx, func(tx domain.Tables) error {
		return tx.InsertAllocations(ctx, models.AllocationsFor(id, models.NewDateRange(day(1), day(2))))
	}))
	allocs, err = store.AllocationsByReservation(ctx, id)
	require.NoError(t, err)
	assert.Len(t, allocs, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.WithTx(cancelled, func(domain.Tables) error { return nil }), context.Canceled)
}

func TestMemoryStore_ConcurrentInsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	r := models.NewDateRange(day(10), day(11))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- store.WithTx(ctx, func(tx domain.Tables) error {
				return tx.InsertAllocations(ctx, models.AllocationsFor(uuid.New(), r))
			})
		}()
	}
	wg.Wait()
	close(results)

	var success int
	for err := range results {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDateTaken)
	}
	assert.Equal(t, 1, success)
}
