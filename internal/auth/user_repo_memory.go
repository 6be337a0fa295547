package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryUserRepo is a threadsafe in-memory storage useful for tests & single-instance servers.
// ID counter starts from 1.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*User // key = lowercase(username)
	byID   map[int64]*User
	nextID int64
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[string]*User),
		byID:   make(map[int64]*User),
		nextID: 1,
	}
}

// GetUserByUsername retrieves a copy of the user by case-insensitive username.
func (r *MemoryUserRepo) GetUserByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[normalize(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepo) GetUserByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// CreateUser inserts a new user if username not present.
func (r *MemoryUserRepo) CreateUser(_ context.Context, username, passwordHash, group string) (*User, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return nil, ErrUserExists
	}
	now := time.Now()
	user := &User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Group:        group,
		CreatedAt:    now,
		LastLogin:    now,
	}
	r.nextID++
	r.users[key] = user
	r.byID[user.ID] = user
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepo) SetUUID(_ context.Context, id int64, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.UUID = uuid
	return nil
}

func (r *MemoryUserRepo) TouchLogin(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLogin = time.Now()
	return nil
}

// Helper to normalise usernames.
func normalize(username string) string {
	return strings.ToLower(username)
}
