package service

import (
	"context"
	"sync"

	"campsite/internal/domain"
	"campsite/internal/events"
	"campsite/internal/metrics"
	"campsite/internal/models"

	"github.com/rs/zerolog"
)

// CachedAvailability is a read-through cache over availability queries.
// Cache failures degrade to a direct read. An answer read before an
// invalidation is never stored after it.
type CachedAvailability struct {
	source domain.AvailabilityReader
	cache  domain.AvailabilityCache
	logger *zerolog.Logger

	mu    sync.RWMutex
	epoch uint64
}

func NewCachedAvailability(source domain.AvailabilityReader, cache domain.AvailabilityCache, logger *zerolog.Logger) *CachedAvailability {
	return &CachedAvailability{source: source, cache: cache, logger: logger}
}

func (c *CachedAvailability) GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error) {
	cached, ok, err := c.cache.Get(ctx, r)
	switch {
	case err != nil:
		metrics.IncCache(metrics.CacheError)
		c.logger.Warn().Err(err).Str("range", r.String()).Msg("Availability cache read failed")
	case ok:
		metrics.IncCache(metrics.CacheHit)
		return cached, nil
	default:
		metrics.IncCache(metrics.CacheMiss)
	}

	epoch := c.currentEpoch()
	availability, err := c.source.GetAvailability(ctx, r)
	if err != nil {
		return nil, err
	}

	c.store(ctx, r, availability, epoch)
	return availability, nil
}

func (c *CachedAvailability) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// store writes the answer unless an invalidation ran since epoch was taken.
func (c *CachedAvailability) store(ctx context.Context, r models.DateRange, availability models.Availability, epoch uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.epoch != epoch {
		c.logger.Debug().Str("range", r.String()).Msg("Availability changed during read, not cached")
		return
	}
	if err := c.cache.Set(ctx, r, availability); err != nil {
		c.logger.Warn().Err(err).Str("range", r.String()).Msg("Availability cache write failed")
	}
}

// Invalidate drops every cached answer and refuses writes of answers read
// before it.
func (c *CachedAvailability) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	return c.cache.InvalidateAll(ctx)
}

// Subscribe drops every cached answer after each committed mutation.
func (c *CachedAvailability) Subscribe(bus *events.EventBus) {
	bus.SubscribeMany(events.MutationEvents, func(event *events.Event) error {
		if err := c.Invalidate(context.Background()); err != nil {
			c.logger.Error().Err(err).Str("event_type", event.Type).Msg("Availability cache invalidation failed")
			return err
		}
		return nil
	})
}
