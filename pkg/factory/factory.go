package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"userservice/internal/config"
	"userservice/internal/domain"
	"userservice/internal/repository"
	"userservice/internal/service"
	"userservice/pkg/cache"
	"userservice/pkg/database"
	"userservice/pkg/logger"
	redisclient "userservice/pkg/redis"
	"userservice/pkg/tracing"
)

type Factory interface {
	GetLogger() logger.Logger
	GetConfig() *config.Config
	// GetConnectionManager returns nil for the memory driver.
	GetConnectionManager() *database.ConnectionManager
	GetCache() cache.Cache
	GetCacheManager() cache.CacheStrategy
	GetWarmUpManager() *cache.WarmUpManager
	GetUserService() domain.UserService

	// Close flushes traces and releases the database and Redis connections.
	Close(ctx context.Context) error
}

type AppFactory struct {
	config            *config.Config
	logger            logger.Logger
	shutdownTracing   func(context.Context) error
	connectionManager *database.ConnectionManager
	redisClient       *redis.Client
	cache             cache.Cache
	cacheManager      cache.CacheStrategy
	warmUpManager     *cache.WarmUpManager

	userRepository domain.UserRepository
	userService    domain.UserService
}

func NewFactory(ctx context.Context) (Factory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.LogLevel(cfg.LogLevel), cfg.AppEnv, os.Stdout)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	var cm *database.ConnectionManager
	if cfg.Database.Driver != database.DriverMemory {
		cm, err = database.NewConnectionManager(cfg.Database, log)
		if err != nil {
			shutdownTracing(ctx)
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	f := &AppFactory{
		config:            cfg,
		logger:            log,
		shutdownTracing:   shutdownTracing,
		connectionManager: cm,
	}

	f.initCache(ctx)
	f.initRepositories()
	f.initServices()

	return f, nil
}

// initCache leaves the cache unset when it is disabled or Redis is unreachable.
func (f *AppFactory) initCache(ctx context.Context) {
	if !f.config.Cache.Enabled {
		f.logger.Info("Cache disabled", nil)
		return
	}

	client, err := redisclient.NewClient(ctx, f.config.Redis)
	if err != nil {
		f.logger.Warn("Redis unavailable, serving without cache", map[string]interface{}{"error": err.Error()})
		return
	}

	f.redisClient = client
	f.cache = cache.NewRedisCache(client, f.logger, f.config.Cache.Prefix)
	f.cacheManager = cache.NewCacheManager(f.cache, f.logger)

	f.logger.Info("Cache enabled", map[string]interface{}{"addr": f.config.Redis.Addr()})
}

func (f *AppFactory) initRepositories() {
	if f.connectionManager == nil {
		f.logger.Warn("Using in-memory user store, data is lost on restart", nil)
		f.userRepository = repository.NewMemoryUserRepository()
		return
	}
	f.userRepository = repository.NewUserRepository(f.connectionManager.GetDB(), f.logger)
}

func (f *AppFactory) initServices() {
	baseUserService := service.NewUserService(f.userRepository, f.logger)

	if f.cache == nil {
		f.userService = baseUserService
		return
	}

	f.userService = service.NewCachedUserService(baseUserService, f.cacheManager, f.logger)
	f.warmUpManager = cache.NewWarmUpManager(f.cache, f.logger, baseUserService)
}

func (f *AppFactory) GetLogger() logger.Logger {
	return f.logger
}

func (f *AppFactory) GetConfig() *config.Config {
	return f.config
}

func (f *AppFactory) GetConnectionManager() *database.ConnectionManager {
	return f.connectionManager
}

func (f *AppFactory) GetCache() cache.Cache {
	return f.cache
}

func (f *AppFactory) GetCacheManager() cache.CacheStrategy {
	return f.cacheManager
}

func (f *AppFactory) GetWarmUpManager() *cache.WarmUpManager {
	return f.warmUpManager
}

func (f *AppFactory) GetUserService() domain.UserService {
	return f.userService
}

func (f *AppFactory) Close(ctx context.Context) error {
	var firstErr error

	if f.redisClient != nil {
		if err := f.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close redis: %w", err)
		}
	}

	if f.connectionManager != nil {
		if err := f.connectionManager.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close database: %w", err)
		}
	}

	if err := f.shutdownTracing(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to shut down tracing: %w", err)
	}

	return firstErr
}
