package service

import (
	"context"

	"userservice/internal/domain"
	"userservice/pkg/cache"
	"userservice/pkg/logger"
)

// CachedUserService wraps a UserService with read-through lookups. Every
// successful write invalidates the lists and the user it touched.
type CachedUserService struct {
	userService  domain.UserService
	cacheManager cache.CacheStrategy
	logger       logger.Logger
}

func NewCachedUserService(
	userService domain.UserService,
	cacheManager cache.CacheStrategy,
	logger logger.Logger,
) domain.UserService {
	return &CachedUserService{
		userService:  userService,
		cacheManager: cacheManager,
		logger:       logger,
	}
}

func (s *CachedUserService) GetUserByID(ctx context.Context, id int64) (*domain.UserDTO, error) {
	var user domain.UserDTO
	err := s.cacheManager.ReadThrough(ctx, cache.UserCacheKey(id), &user, func() (interface{}, error) {
		return s.userService.GetUserByID(ctx, id)
	}, cache.LongExpiration)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *CachedUserService) GetAllUsers(ctx context.Context) ([]*domain.UserDTO, error) {
	return s.readList(ctx, cache.UserListAllKey, s.userService.GetAllUsers)
}

func (s *CachedUserService) GetActiveUsers(ctx context.Context) ([]*domain.UserDTO, error) {
	return s.readList(ctx, cache.UserListActiveKey, s.userService.GetActiveUsers)
}

func (s *CachedUserService) readList(ctx context.Context, key string, fetch func(context.Context) ([]*domain.UserDTO, error)) ([]*domain.UserDTO, error) {
	users := []*domain.UserDTO{}
	err := s.cacheManager.ReadThrough(ctx, key, &users, func() (interface{}, error) {
		return fetch(ctx)
	}, cache.ShortExpiration)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *CachedUserService) CreateUser(ctx context.Context, dto *domain.UserDTO) (*domain.UserDTO, error) {
	created, err := s.userService.CreateUser(ctx, dto)
	if err != nil {
		return nil, err
	}

	s.cacheManager.Invalidate(ctx, cache.UserListAllKey, cache.UserListActiveKey)
	return created, nil
}

func (s *CachedUserService) UpdateUser(ctx context.Context, id int64, dto *domain.UserDTO) (*domain.UserDTO, error) {
	updated, err := s.userService.UpdateUser(ctx, id, dto)
	if err != nil {
		return nil, err
	}

	s.invalidateUser(ctx, id)
	return updated, nil
}

func (s *CachedUserService) DeactivateUser(ctx context.Context, id int64) (*domain.UserDTO, error) {
	deactivated, err := s.userService.DeactivateUser(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateUser(ctx, id)
	return deactivated, nil
}

func (s *CachedUserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.userService.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.invalidateUser(ctx, id)
	return nil
}

func (s *CachedUserService) invalidateUser(ctx context.Context, id int64) {
	s.cacheManager.Invalidate(ctx, cache.UserCacheKey(id), cache.UserListAllKey, cache.UserListActiveKey)
	s.logger.DebugContext(ctx, "User cache invalidated", map[string]interface{}{"id": id})
}
