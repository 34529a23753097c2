package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"userservice/pkg/logger"
	"userservice/pkg/metrics"
)

const (
	UserByIDKey       = "user:id:%d"
	UserListAllKey    = "user:list:all"
	UserListActiveKey = "user:list:active"
)

const (
	ShortExpiration = 5 * time.Minute
	LongExpiration  = 2 * time.Hour

	// InvalidationHold must outlast any source fetch made by ReadThrough.
	InvalidationHold = 30 * time.Second
)

type CacheStrategy interface {
	// ReadThrough serves dest from cache, or fills it from fetchFunc. The
	// result is cached only if the key is still empty, and never while it is
	// invalidated.
	ReadThrough(ctx context.Context, key string, dest interface{}, fetchFunc func() (interface{}, error), expiration time.Duration) error

	// Invalidate marks keys invalidated for InvalidationHold; failures are logged only.
	Invalidate(ctx context.Context, keys ...string)
}

type CacheManager struct {
	cache  Cache
	logger logger.Logger
}

func NewCacheManager(cache Cache, logger logger.Logger) CacheStrategy {
	return &CacheManager{
		cache:  cache,
		logger: logger,
	}
}

func (cm *CacheManager) ReadThrough(ctx context.Context, key string, dest interface{}, fetchFunc func() (interface{}, error), expiration time.Duration) error {
	err := cm.cache.Get(ctx, key, dest)
	if err == nil {
		metrics.RecordCacheHit()
		return nil
	}

	metrics.RecordCacheMiss()
	fill := true
	switch {
	case errors.Is(err, ErrCacheMiss):
	case errors.Is(err, ErrInvalidated):
		fill = false
	default:
		// fall through to the source
		cm.logger.WarnContext(ctx, "Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	data, err := fetchFunc()
	if err != nil {
		return err
	}

	if fill {
		if _, err := cm.cache.SetNX(ctx, key, data, expiration); err != nil {
			cm.logger.WarnContext(ctx, "Cache fill failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	return copyData(data, dest)
}

func (cm *CacheManager) Invalidate(ctx context.Context, keys ...string) {
	if err := cm.cache.Invalidate(ctx, keys, InvalidationHold); err != nil {
		cm.logger.WarnContext(ctx, "Cache invalidation failed", map[string]interface{}{"keys": keys, "error": err.Error()})
	}
}

func UserCacheKey(userID int64) string {
	return fmt.Sprintf(UserByIDKey, userID)
}

func copyData(src, dest interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
