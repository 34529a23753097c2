package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"userservice/pkg/logger"
)

var (
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidated is returned by Get while a key holds an invalidation marker.
	ErrInvalidated = errors.New("cache entry invalidated")
)

// invalidatedMarker is not valid JSON, so it never collides with a cached value.
var invalidatedMarker = []byte("\x00invalidated")

type Cache interface {
	// SetNX stores value only when key is absent. A key holding an
	// invalidation marker is not absent.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Get(ctx context.Context, key string, dest interface{}) error

	// Invalidate replaces keys with a marker that lives for hold, so fills
	// computed before the invalidation cannot land after it.
	Invalidate(ctx context.Context, keys []string, hold time.Duration) error
	Ping(ctx context.Context) error
}

// RedisCache stores JSON values under a key prefix. Calls go through a
// circuit breaker so an unreachable Redis fails fast instead of adding
// latency to every request.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
	prefix  string
}

func NewRedisCache(client *redis.Client, logger logger.Logger, prefix string) Cache {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Cache circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})

	return &RedisCache{
		client:  client,
		breaker: breaker,
		logger:  logger,
		prefix:  prefix,
	}
}

func (r *RedisCache) makeKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisCache) do(fn func() (interface{}, error)) (interface{}, error) {
	return r.breaker.Execute(fn)
}

func (r *RedisCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := r.makeKey(key)
	res, err := r.do(func() (interface{}, error) {
		return r.client.SetNX(ctx, fullKey, data, expiration).Result()
	})
	if err != nil {
		r.logger.Error("Cache set failed", map[string]interface{}{"key": fullKey, "error": err.Error()})
		return false, err
	}

	stored := res.(bool)
	r.logger.Debug("Cache set", map[string]interface{}{"key": fullKey, "stored": stored, "expiration": expiration.String()})
	return stored, nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := r.makeKey(key)
	res, err := r.do(func() (interface{}, error) {
		return r.client.Get(ctx, fullKey).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		r.logger.Error("Cache get failed", map[string]interface{}{"key": fullKey, "error": err.Error()})
		return err
	}

	data := res.([]byte)
	if bytes.Equal(data, invalidatedMarker) {
		return ErrInvalidated
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, keys []string, hold time.Duration) error {
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = r.makeKey(key)
	}

	_, err := r.do(func() (interface{}, error) {
		return r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range fullKeys {
				pipe.Set(ctx, key, invalidatedMarker, hold)
			}
			return nil
		})
	})
	if err != nil {
		r.logger.Error("Cache invalidate failed", map[string]interface{}{"keys": fullKeys, "error": err.Error()})
		return err
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
