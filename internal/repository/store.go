package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process domain.Store. Allocations live in an arena
// indexed by date and by owning reservation.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

var _ domain.Store = (*MemoryStore)(nil)

type memoryState struct {
	arena   []models.Allocation
	free    []int
	byDate  map[string]int
	byOwner map[uuid.UUID][]int
	guests  map[uuid.UUID]models.Guest
	links   map[uuid.UUID]models.Link
}

func newMemoryState() *memoryState {
	return &memoryState{
		byDate:  make(map[string]int),
		byOwner: make(map[uuid.UUID][]int),
		guests:  make(map[uuid.UUID]models.Guest),
		links:   make(map[uuid.UUID]models.Link),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		arena:   append([]models.Allocation(nil), s.arena...),
		free:    append([]int(nil), s.free...),
		byDate:  make(map[string]int, len(s.byDate)),
		byOwner: make(map[uuid.UUID][]int, len(s.byOwner)),
		guests:  make(map[uuid.UUID]models.Guest, len(s.guests)),
		links:   make(map[uuid.UUID]models.Link, len(s.links)),
	}
	for k, v := range s.byDate {
		c.byDate[k] = v
	}
	for k, v := range s.byOwner {
		c.byOwner[k] = append([]int(nil), v...)
	}
	for k, v := range s.guests {
		c.guests[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	return c
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// WithTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds. Transactions are serialized.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx domain.Tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := m.state.clone()
	if err := fn(memoryTables{st: draft}); err != nil {
		return err
	}
	m.state = draft
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) tables() (memoryTables, func()) {
	m.mu.Lock()
	return memoryTables{st: m.state}, m.mu.Unlock
}

func (m *MemoryStore) AllocationsInRange(ctx context.Context, start, end time.Time) ([]*models.Allocation, error) {
	t, unlock := m.tables()
	defer unlock()
	return t.AllocationsInRange(ctx, start, end)
}

func (m *MemoryStore) AllocationsByReservation(ctx context.Context, reservationID uuid.UUID) ([]*models.Allocation, error) {
	t, unlock := m.tables()
	defer unlock()
	return t.AllocationsByReservation(ctx, reservationID)
}

func (m *MemoryStore) InsertAllocations(ctx context.Context, allocs []*models.Allocation) error {
	t, unlock := m.tables()
	defer unlock()
	return t.InsertAllocations(ctx, allocs)
}

func (m *MemoryStore) DeleteAllocationsByReservation(ctx context.Context, reservationID uuid.UUID) (int64, error) {
	t, unlock := m.tables()
	defer unlock()
	return t.DeleteAllocationsByReservation(ctx, reservationID)
}

func (m *MemoryStore) FindGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	t, unlock := m.tables()
	defer unlock()
	return t.FindGuestByEmail(ctx, email)
}

func (m *MemoryStore) FindGuestByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	t, unlock := m.tables()
	defer unlock()
	return t.FindGuestByID(ctx, id)
}

func (m *MemoryStore) InsertGuest(ctx context.Context, guest *models.Guest) error {
	t, unlock := m.tables()
	defer unlock()
	return t.InsertGuest(ctx, guest)
}

func (m *MemoryStore) UpdateGuest(ctx context.Context, guest *models.Guest) error {
	t, unlock := m.tables()
	defer unlock()
	return t.UpdateGuest(ctx, guest)
}

func (m *MemoryStore) DeleteGuest(ctx context.Context, id uuid.UUID) error {
	t, unlock := m.tables()
	defer unlock()
	return t.DeleteGuest(ctx, id)
}

func (m *MemoryStore) FindLink(ctx context.Context, reservationID uuid.UUID) (*models.Link, error) {
	t, unlock := m.tables()
	defer unlock()
	return t.FindLink(ctx, reservationID)
}

func (m *MemoryStore) InsertLink(ctx context.Context, link *models.Link) error {
	t, unlock := m.tables()
	defer unlock()
	return t.InsertLink(ctx, link)
}

func (m *MemoryStore) DeleteLink(ctx context.Context, reservationID uuid.UUID) error {
	t, unlock := m.tables()
	defer unlock()
	return t.DeleteLink(ctx, reservationID)
}

// memoryTables operates on a state without locking; callers hold the lock.
type memoryTables struct {
	st *memoryState
}

func dateKey(t time.Time) string {
	return t.Format(models.DateLayout)
}

func (t memoryTables) AllocationsInRange(_ context.Context, start, end time.Time) ([]*models.Allocation, error) {
	var out []*models.Allocation
	for _, d := range models.NewDateRange(start, end).Dates() {
		if slot, ok := t.st.byDate[dateKey(d)]; ok {
			a := t.st.arena[slot]
			out = append(out, &a)
		}
	}
	return out, nil
}

func (t memoryTables) AllocationsByReservation(_ context.Context, reservationID uuid.UUID) ([]*models.Allocation, error) {
	slots := t.st.byOwner[reservationID]
	out := make([]*models.Allocation, 0, len(slots))
	for _, slot := range slots {
		a := t.st.arena[slot]
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// InsertAllocations is all-or-nothing: no row is written when any date is taken.
func (t memoryTables) InsertAllocations(_ context.Context, allocs []*models.Allocation) error {
	seen := make(map[string]struct{}, len(allocs))
	for _, a := range allocs {
		key := dateKey(a.Date)
		if _, taken := t.st.byDate[key]; taken {
			return domain.ErrDateTaken
		}
		if _, dup := seen[key]; dup {
			return domain.ErrDateTaken
		}
		seen[key] = struct{}{}
	}

	for _, a := range allocs {
		var slot int
		if n := len(t.st.free); n > 0 {
			slot = t.st.free[n-1]
			t.st.free = t.st.free[:n-1]
			t.st.arena[slot] = models.Allocation{Date: models.Day(a.Date), ReservationID: a.ReservationID}
		} else {
			slot = len(t.st.arena)
			t.st.arena = append(t.st.arena, models.Allocation{Date: models.Day(a.Date), ReservationID: a.ReservationID})
		}
		t.st.byDate[dateKey(a.Date)] = slot
		t.st.byOwner[a.ReservationID] = append(t.st.byOwner[a.ReservationID], slot)
	}
	return nil
}

func (t memoryTables) DeleteAllocationsByReservation(_ context.Context, reservationID uuid.UUID) (int64, error) {
	slots := t.st.byOwner[reservationID]
	for _, slot := range slots {
		delete(t.st.byDate, dateKey(t.st.arena[slot].Date))
		t.st.arena[slot] = models.Allocation{}
		t.st.free = append(t.st.free, slot)
	}
	delete(t.st.byOwner, reservationID)
	return int64(len(slots)), nil
}

func (t memoryTables) FindGuestByEmail(_ context.Context, email string) (*models.Guest, error) {
	for _, g := range t.st.guests {
		if g.Email == email {
			found := g
			return &found, nil
		}
	}
	return nil, nil
}

func (t memoryTables) FindGuestByID(_ context.Context, id uuid.UUID) (*models.Guest, error) {
	g, ok := t.st.guests[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (t memoryTables) InsertGuest(_ context.Context, guest *models.Guest) error {
	if guest.ID == uuid.Nil {
		guest.ID = uuid.New()
	}
	t.st.guests[guest.ID] = *guest
	return nil
}

func (t memoryTables) UpdateGuest(_ context.Context, guest *models.Guest) error {
	if _, ok := t.st.guests[guest.ID]; ok {
		t.st.guests[guest.ID] = *guest
	}
	return nil
}

func (t memoryTables) DeleteGuest(_ context.Context, id uuid.UUID) error {
	delete(t.st.guests, id)
	return nil
}

func (t memoryTables) FindLink(_ context.Context, reservationID uuid.UUID) (*models.Link, error) {
	l, ok := t.st.links[reservationID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (t memoryTables) InsertLink(_ context.Context, link *models.Link) error {
	t.st.links[link.ReservationID] = *link
	return nil
}

func (t memoryTables) DeleteLink(_ context.Context, reservationID uuid.UUID) error {
	delete(t.st.links, reservationID)
	return nil
}
