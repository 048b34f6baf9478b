package repository

import (
	"context"
	"sync/atomic"
	"time"

	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverAvailabilityCache serves from primary and switches to fallback when
// primary fails. A primary that missed an invalidation is flushed before it
// is trusted again.
type FailoverAvailabilityCache struct {
	primary   domain.AvailabilityCache
	fallback  domain.AvailabilityCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	stale     atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

var _ domain.AvailabilityCache = (*FailoverAvailabilityCache)(nil)

func NewFailoverAvailabilityCache(primary, fallback domain.AvailabilityCache, logger *zerolog.Logger) *FailoverAvailabilityCache {
	return &FailoverAvailabilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *FailoverAvailabilityCache) markDown(err error) {
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Msg("Primary availability cache failed, falling back to memory")
	}
	c.lastCheck.Store(c.now().UnixNano())
}

// usePrimary reports whether primary should serve the call, retrying a down
// primary once per recovery interval.
func (c *FailoverAvailabilityCache) usePrimary(ctx context.Context) bool {
	if !c.isDown.Load() {
		return true
	}
	if c.now().Sub(time.Unix(0, c.lastCheck.Load())) <= recoveryInterval {
		return false
	}

	c.lastCheck.Store(c.now().UnixNano())
	if c.stale.Load() {
		if err := c.primary.InvalidateAll(ctx); err != nil {
			return false
		}
		c.stale.Store(false)
	}
	c.isDown.Store(false)
	c.logger.Info().Msg("Primary availability cache recovered")
	return true
}

func (c *FailoverAvailabilityCache) Get(ctx context.Context, r models.DateRange) (models.Availability, bool, error) {
	if c.usePrimary(ctx) {
		availability, ok, err := c.primary.Get(ctx, r)
		if err == nil {
			return availability, ok, nil
		}
		c.markDown(err)
	}
	return c.fallback.Get(ctx, r)
}

func (c *FailoverAvailabilityCache) Set(ctx context.Context, r models.DateRange, availability models.Availability) error {
	if c.usePrimary(ctx) {
		err := c.primary.Set(ctx, r, availability)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.Set(ctx, r, availability)
}

// InvalidateAll always reaches both caches so neither keeps entries from
// before the mutation.
func (c *FailoverAvailabilityCache) InvalidateAll(ctx context.Context) error {
	if err := c.primary.InvalidateAll(ctx); err != nil {
		c.stale.Store(true)
		c.markDown(err)
	}
	return c.fallback.InvalidateAll(ctx)
}
