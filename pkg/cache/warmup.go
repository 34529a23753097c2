package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"userservice/internal/domain"
	"userservice/pkg/logger"
)

const warmUpConcurrency = 5

// WarmUpManager fills the user cache from the uncached service.
type WarmUpManager struct {
	cache       Cache
	logger      logger.Logger
	userService domain.UserService
}

func NewWarmUpManager(cache Cache, logger logger.Logger, userService domain.UserService) *WarmUpManager {
	return &WarmUpManager{
		cache:       cache,
		logger:      logger,
		userService: userService,
	}
}

// WarmUp caches both user lists and every active user by ID. Keys that are
// already cached or invalidated are left alone.
func (w *WarmUpManager) WarmUp(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Cache warm-up started", nil)

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.warmUpAllUsers(ctx); err != nil {
			errChan <- fmt.Errorf("all users warm-up failed: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.warmUpActiveUsers(ctx); err != nil {
			errChan <- fmt.Errorf("active users warm-up failed: %w", err)
		}
	}()

	wg.Wait()
	close(errChan)

	for err := range errChan {
		w.logger.ErrorContext(ctx, "Cache warm-up failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	w.logger.InfoContext(ctx, "Cache warm-up finished", nil)
	return nil
}

// ScheduledWarmUp runs WarmUp once and then on every tick until ctx is done.
func (w *WarmUpManager) ScheduledWarmUp(ctx context.Context, interval time.Duration) {
	if err := w.WarmUp(ctx); err != nil {
		w.logger.Warn("Initial cache warm-up failed", map[string]interface{}{"error": err.Error()})
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Scheduled cache warm-up started", map[string]interface{}{"interval": interval.String()})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Scheduled cache warm-up stopped", nil)
			return
		case <-ticker.C:
			if err := w.WarmUp(ctx); err != nil {
				w.logger.Warn("Scheduled cache warm-up failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (w *WarmUpManager) warmUpAllUsers(ctx context.Context) error {
	users, err := w.userService.GetAllUsers(ctx)
	if err != nil {
		return err
	}
	_, err = w.cache.SetNX(ctx, UserListAllKey, users, ShortExpiration)
	return err
}

func (w *WarmUpManager) warmUpActiveUsers(ctx context.Context) error {
	users, err := w.userService.GetActiveUsers(ctx)
	if err != nil {
		return err
	}
	if _, err := w.cache.SetNX(ctx, UserListActiveKey, users, ShortExpiration); err != nil {
		return err
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, warmUpConcurrency)

	for _, user := range users {
		wg.Add(1)
		go func(user *domain.UserDTO) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if _, err := w.cache.SetNX(ctx, UserCacheKey(user.ID), user, LongExpiration); err != nil {
				w.logger.Warn("User cache warm-up failed", map[string]interface{}{"id": user.ID, "error": err.Error()})
			}
		}(user)
	}

	wg.Wait()
	return nil
}
