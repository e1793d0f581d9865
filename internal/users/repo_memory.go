package users

import (
	"context"
	"sync"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

// MemoryRepository keeps users in maps guarded by one mutex.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]User
	byEmail    map[string]string
	byUsername map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user User) (User, error) {
	const op = "users.memory.Create"

	email, username := lookupKey(user.Email), lookupKey(user.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	_, emailTaken := r.byEmail[email]
	_, nameTaken := r.byUsername[username]
	if emailTaken || nameTaken {
		return User{}, errx.E(op, errx.Conflict, ErrUserExists)
	}
	if _, ok := r.byID[user.ID]; ok {
		return User{}, errx.E(op, errx.Conflict, ErrUserExists)
	}

	r.byID[user.ID] = user
	r.byEmail[email] = user.ID
	r.byUsername[username] = user.ID
	return user, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return User{}, errx.E("users.memory.GetByID", errx.NotFound, ErrUserNotFound)
	}
	return u, nil
}

func (r *MemoryRepository) FindByLogin(_ context.Context, identifier string) (User, error) {
	key := lookupKey(identifier)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[key]
	if !ok {
		id, ok = r.byUsername[key]
	}
	if !ok {
		return User{}, errx.E("users.memory.FindByLogin", errx.NotFound, ErrUserNotFound)
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}
