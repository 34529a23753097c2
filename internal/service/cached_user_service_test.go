package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"userservice/internal/domain"
	"userservice/pkg/cache"
	"userservice/pkg/logger"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	down bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

var errCacheDown = errors.New("cache down")

func (m *memoryCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return false, errCacheDown
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.data[key] = b
	return true, nil
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errCacheDown
	}
	b, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	if b == nil {
		return cache.ErrInvalidated
	}
	return json.Unmarshal(b, dest)
}

// Invalidate stores a nil entry as the marker and ignores hold.
func (m *memoryCache) Invalidate(_ context.Context, keys []string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errCacheDown
	}
	for _, k := range keys {
		m.data[k] = nil
	}
	return nil
}

func (m *memoryCache) Ping(context.Context) error {
	if m.down {
		return errCacheDown
	}
	return nil
}

func (m *memoryCache) cached(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return ok && b != nil
}

func (m *memoryCache) invalidated(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return ok && b == nil
}

// countingService records how often reads reach the wrapped service.
// afterGet, when set, runs after GetUserByID has read from the service.
type countingService struct {
	domain.UserService
	mu       sync.Mutex
	reads    map[string]int
	afterGet func()
}

func (c *countingService) count(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads[op]++
}

func (c *countingService) calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[op]
}

func (c *countingService) GetUserByID(ctx context.Context, id int64) (*domain.UserDTO, error) {
	c.count("get")
	if c.afterGet != nil {
		defer c.afterGet()
	}
	return c.UserService.GetUserByID(ctx, id)
}

func (c *countingService) GetAllUsers(ctx context.Context) ([]*domain.UserDTO, error) {
	c.count("all")
	return c.UserService.GetAllUsers(ctx)
}

func (c *countingService) GetActiveUsers(ctx context.Context) ([]*domain.UserDTO, error) {
	c.count("active")
	return c.UserService.GetActiveUsers(ctx)
}

func newCachedTestService() (domain.UserService, *countingService, *memoryCache) {
	base, _ := newTestService()
	counting := &countingService{UserService: base, reads: make(map[string]int)}
	c := newMemoryCache()
	svc := NewCachedUserService(counting, cache.NewCacheManager(c, logger.Nop()), logger.Nop())
	return svc, counting, c
}

func TestCachedUserService_GetUserByIDReadThrough(t *testing.T) {
	svc, counting, c := newCachedTestService()
	ctx := context.Background()

	created := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})

	for i := 0; i < 3; i++ {
		got, err := svc.GetUserByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if got.Email != "a@x.com" {
			t.Errorf("Expected a@x.com, got %s", got.Email)
		}
	}

	if !c.cached(cache.UserCacheKey(created.ID)) {
		t.Error("Expected user to be cached after the first read")
	}
	if n := counting.calls("get"); n != 1 {
		t.Errorf("Expected one service call, got %d", n)
	}
}

func TestCachedUserService_NotFoundPropagates(t *testing.T) {
	svc, _, c := newCachedTestService()

	_, err := svc.GetUserByID(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if c.cached(cache.UserCacheKey(42)) {
		t.Error("Expected missing user not to be cached")
	}
}

func TestCachedUserService_ListsInvalidatedOnWrite(t *testing.T) {
	svc, counting, c := newCachedTestService()
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})
	if !c.invalidated(cache.UserListAllKey) || !c.invalidated(cache.UserListActiveKey) {
		t.Fatal("Expected create to invalidate both lists")
	}

	// markers in the fake never expire, so drop them to get a cacheable list
	c.mu.Lock()
	delete(c.data, cache.UserListActiveKey)
	c.mu.Unlock()

	for i := 0; i < 2; i++ {
		if _, err := svc.GetActiveUsers(ctx); err != nil {
			t.Fatalf("GetActiveUsers failed: %v", err)
		}
	}
	if n := counting.calls("active"); n != 1 {
		t.Fatalf("Expected one service call before invalidation, got %d", n)
	}

	if _, err := svc.DeactivateUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}

	active, err := svc.GetActiveUsers(ctx)
	if err != nil {
		t.Fatalf("GetActiveUsers failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active users after deactivation, got %d", len(active))
	}
	if n := counting.calls("active"); n != 2 {
		t.Errorf("Expected list to be refetched after write, got %d calls", n)
	}

	got, err := svc.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Active == nil || *got.Active {
		t.Errorf("Expected user to be inactive, got %v", got.Active)
	}
}

func TestCachedUserService_UpdateInvalidatesUser(t *testing.T) {
	svc, counting, c := newCachedTestService()
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})
	if _, err := svc.GetUserByID(ctx, alice.ID); err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	if _, err := svc.UpdateUser(ctx, alice.ID, &domain.UserDTO{Name: "Alicia", Email: "alicia@x.com"}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if !c.invalidated(cache.UserCacheKey(alice.ID)) {
		t.Error("Expected updated user to be invalidated")
	}

	got, err := svc.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Name != "Alicia" || got.Email != "alicia@x.com" {
		t.Errorf("Expected updated values, got %+v", got)
	}
	if n := counting.calls("get"); n != 2 {
		t.Errorf("Expected read after update to reach the service, got %d calls", n)
	}
}

func TestCachedUserService_FailedUpdateKeepsCache(t *testing.T) {
	svc, counting, c := newCachedTestService()
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})
	mustCreate(t, svc, &domain.UserDTO{Name: "Bob", Email: "b@x.com"})
	if _, err := svc.GetUserByID(ctx, alice.ID); err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	_, err := svc.UpdateUser(ctx, alice.ID, &domain.UserDTO{Name: "Alice", Email: "b@x.com"})
	if !errors.Is(err, domain.ErrDuplicateResource) {
		t.Fatalf("Expected ErrDuplicateResource, got %v", err)
	}
	if !c.cached(cache.UserCacheKey(alice.ID)) {
		t.Error("Expected failed update to leave the cached user in place")
	}

	got, err := svc.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Email != "a@x.com" {
		t.Errorf("Expected original email, got %s", got.Email)
	}
	if n := counting.calls("get"); n != 1 {
		t.Errorf("Expected second read to be served from cache, got %d calls", n)
	}
}

func TestCachedUserService_DeleteInvalidates(t *testing.T) {
	svc, _, c := newCachedTestService()
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})
	if _, err := svc.GetUserByID(ctx, alice.ID); err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	if err := svc.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	for _, key := range []string{cache.UserCacheKey(alice.ID), cache.UserListAllKey, cache.UserListActiveKey} {
		if !c.invalidated(key) {
			t.Errorf("Expected %s to be invalidated", key)
		}
	}
	if _, err := svc.GetUserByID(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	all, err := svc.GetAllUsers(ctx)
	if err != nil {
		t.Fatalf("GetAllUsers failed: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", all)
	}
}

func TestCachedUserService_DeleteDuringReadThrough(t *testing.T) {
	svc, counting, c := newCachedTestService()
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})

	// the delete commits after the read has fetched alice but before it fills the cache
	var once sync.Once
	counting.afterGet = func() {
		once.Do(func() {
			if err := svc.DeleteUser(ctx, alice.ID); err != nil {
				t.Errorf("DeleteUser failed: %v", err)
			}
		})
	}

	if _, err := svc.GetUserByID(ctx, alice.ID); err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	if c.cached(cache.UserCacheKey(alice.ID)) {
		t.Error("Expected stale read not to be cached")
	}
	if _, err := svc.GetUserByID(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedUserService_DeleteDuringWarmUp(t *testing.T) {
	base, _ := newTestService()
	gated := &gatedListService{UserService: base}
	c := newMemoryCache()
	cm := cache.NewCacheManager(c, logger.Nop())
	svc := NewCachedUserService(base, cm, logger.Nop())
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})

	gated.afterActive = func() {
		if err := svc.DeleteUser(ctx, alice.ID); err != nil {
			t.Errorf("DeleteUser failed: %v", err)
		}
	}

	if err := cache.NewWarmUpManager(c, logger.Nop(), gated).WarmUp(ctx); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	if _, err := svc.GetUserByID(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	active, err := svc.GetActiveUsers(ctx)
	if err != nil {
		t.Fatalf("GetActiveUsers failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected deleted user to be gone from the active list, got %d users", len(active))
	}
}

// gatedListService runs afterActive once the active list has been read.
type gatedListService struct {
	domain.UserService
	afterActive func()
}

func (g *gatedListService) GetActiveUsers(ctx context.Context) ([]*domain.UserDTO, error) {
	users, err := g.UserService.GetActiveUsers(ctx)
	if g.afterActive != nil {
		g.afterActive()
	}
	return users, err
}

func TestCachedUserService_CacheDown(t *testing.T) {
	svc, counting, c := newCachedTestService()
	c.down = true
	ctx := context.Background()

	alice := mustCreate(t, svc, &domain.UserDTO{Name: "Alice", Email: "a@x.com"})

	got, err := svc.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Expected cache outage to be tolerated, got %v", err)
	}
	if got.ID != alice.ID {
		t.Errorf("Expected id %d, got %d", alice.ID, got.ID)
	}
	if _, err := svc.DeactivateUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}
	if err := svc.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if n := counting.calls("get"); n != 1 {
		t.Errorf("Expected read to reach the service, got %d calls", n)
	}
}
