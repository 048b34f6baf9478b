package repository

import (
	"context"
	"sync"
	"time"

	"campsite/internal/domain"
	"campsite/internal/models"
)

type MemoryAvailabilityCache struct {
	mu      sync.Mutex
	entries map[string]availabilityEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ domain.AvailabilityCache = (*MemoryAvailabilityCache)(nil)

type availabilityEntry struct {
	value     models.Availability
	expiresAt time.Time
}

func NewMemoryAvailabilityCache(ttl time.Duration) *MemoryAvailabilityCache {
	return &MemoryAvailabilityCache{
		entries: make(map[string]availabilityEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryAvailabilityCache) Get(_ context.Context, r models.DateRange) (models.Availability, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[r.String()]
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		delete(c.entries, r.String())
		return nil, false, nil
	}
	return copyAvailability(entry.value), true, nil
}

func (c *MemoryAvailabilityCache) Set(_ context.Context, r models.DateRange, availability models.Availability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[r.String()] = availabilityEntry{
		value:     copyAvailability(availability),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryAvailabilityCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]availabilityEntry)
	return nil
}

func copyAvailability(a models.Availability) models.Availability {
	out := make(models.Availability, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
