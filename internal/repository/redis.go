package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campsite/internal/config"
	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/redis/go-redis/v9"
)

const availabilityPrefix = "campsite:availability"

// RedisAvailabilityCache stores availability answers under a generation
// number. InvalidateAll bumps the generation so every older entry becomes
// unreachable and expires by TTL.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ domain.AvailabilityCache = (*RedisAvailabilityCache)(nil)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{
		client: client,
		ttl:    ttl,
		prefix: availabilityPrefix,
	}
}

func (c *RedisAvailabilityCache) generationKey() string {
	return c.prefix + ":gen"
}

func (c *RedisAvailabilityCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisAvailabilityCache) entryKey(gen int64, r models.DateRange) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, r.String())
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, r models.DateRange) (models.Availability, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, false, err
	}

	val, err := c.client.Get(ctx, c.entryKey(gen, r)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get availability from redis: %w", err)
	}

	var availability models.Availability
	if err := json.Unmarshal(val, &availability); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	return availability, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, r models.DateRange, availability models.Availability) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}

	if err := c.client.Set(ctx, c.entryKey(gen, r), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set availability in redis: %w", err)
	}
	return nil
}

func (c *RedisAvailabilityCache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
