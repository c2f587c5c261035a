package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"

	"github.com/google/uuid"
)

// memoryRepository keeps users in process. Callers always receive copies.
type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]*authdomain.User
}

func NewMemoryUserRepository() UserStore {
	return &memoryRepository{
		users: make(map[string]*authdomain.User),
	}
}

func clone(u *authdomain.User) *authdomain.User {
	c := *u
	if u.LastSyncedAt != nil {
		t := *u.LastSyncedAt
		c.LastSyncedAt = &t
	}
	return &c
}

func (r *memoryRepository) Create(ctx context.Context, user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email || (user.GoogleID != "" && existing.GoogleID == user.GoogleID) {
			return fmt.Errorf("user %s already exists", user.Email)
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memoryRepository) find(match func(*authdomain.User) bool) *authdomain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return clone(u)
		}
	}
	return nil
}

func (r *memoryRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		return clone(u), nil
	}
	return nil, nil
}

func (r *memoryRepository) FindByGoogleID(ctx context.Context, googleID string) (*authdomain.User, error) {
	return r.find(func(u *authdomain.User) bool { return u.GoogleID == googleID }), nil
}

func (r *memoryRepository) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	return r.find(func(u *authdomain.User) bool { return u.Email == email }), nil
}

func (r *memoryRepository) Update(ctx context.Context, user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, id)
	return nil
}

func (r *memoryRepository) AdvanceHistory(ctx context.Context, email string, historyID uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email != email {
			continue
		}
		if historyID <= u.HistoryID {
			return false, nil
		}
		u.HistoryID = historyID
		synced := at
		u.LastSyncedAt = &synced
		u.UpdatedAt = time.Now()
		return true, nil
	}
	return false, nil
}
