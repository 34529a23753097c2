package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"userservice/internal/domain"
)

type memoryStore struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

// MemoryUserRepository keeps users in a map. It mirrors the SQL schema's
// unique email constraint and supports rollback by snapshotting the map.
type MemoryUserRepository struct {
	store *memoryStore
	inTx  bool
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		store: &memoryStore{users: make(map[int64]*domain.User)},
	}
}

func clone(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *MemoryUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, u := range r.store.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserRepository) ExistsByID(_ context.Context, id int64) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.users[id]
	return ok, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) FindAll(_ context.Context) ([]*domain.User, error) {
	return r.filter(func(*domain.User) bool { return true }), nil
}

func (r *MemoryUserRepository) FindByActive(_ context.Context, active bool) ([]*domain.User, error) {
	return r.filter(func(u *domain.User) bool { return u.Active == active }), nil
}

func (r *MemoryUserRepository) filter(keep func(*domain.User) bool) []*domain.User {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		if keep(u) {
			users = append(users, clone(u))
		}
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (r *MemoryUserRepository) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, u := range r.store.users {
		if u.Email == user.Email && id != user.ID {
			return nil, fmt.Errorf("%w: user with email %s", domain.ErrDuplicateResource, user.Email)
		}
	}

	now := time.Now().UTC()

	if user.ID == 0 {
		r.store.nextID++
		user.ID = r.store.nextID
		user.CreatedAt = now
	} else {
		existing, ok := r.store.users[user.ID]
		if !ok {
			return nil, fmt.Errorf("%w: user with id %d", domain.ErrNotFound, user.ID)
		}
		user.CreatedAt = existing.CreatedAt
	}
	user.UpdatedAt = now

	r.store.users[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryUserRepository) DeleteByID(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.users, id)
	return nil
}

// WithinTransaction serializes transactions and restores the previous state when fn fails.
func (r *MemoryUserRepository) WithinTransaction(_ context.Context, fn func(repo domain.UserRepository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	r.store.mu.RLock()
	snapshot := make(map[int64]*domain.User, len(r.store.users))
	for id, u := range r.store.users {
		snapshot[id] = u
	}
	nextID := r.store.nextID
	r.store.mu.RUnlock()

	if err := fn(&MemoryUserRepository{store: r.store, inTx: true}); err != nil {
		r.store.mu.Lock()
		r.store.users = snapshot
		r.store.nextID = nextID
		r.store.mu.Unlock()
		return err
	}
	return nil
}
