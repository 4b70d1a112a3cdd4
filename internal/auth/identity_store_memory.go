package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// NewInMemoryIdentityStore returns an identity store backed by an in-memory map.
func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{users: make(map[string]models.User)}
}

// InMemoryIdentityStore implements IdentityStore, PasswordStore and LoginLookup for
// tests and local development. Refresh swaps are serialized by the mutex.
type InMemoryIdentityStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put inserts or replaces a user.
func (s *InMemoryIdentityStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// Remove deletes a user.
func (s *InMemoryIdentityStore) Remove(id string) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

// FindByID retrieves a user by id.
func (s *InMemoryIdentityStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

// FindByLogin retrieves a user by username or email.
func (s *InMemoryIdentityStore) FindByLogin(_ context.Context, login string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, login) || strings.EqualFold(user.Email, login) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

// SaveRefreshToken overwrites the user's stored digest.
func (s *InMemoryIdentityStore) SaveRefreshToken(_ context.Context, id, digest string) error {
	return s.update(id, func(u *models.User) error {
		u.RefreshTokenHash = digest
		return nil
	})
}

// SwapRefreshToken replaces the digest only if it still equals previous.
func (s *InMemoryIdentityStore) SwapRefreshToken(_ context.Context, id, previous, next string) error {
	return s.update(id, func(u *models.User) error {
		if u.RefreshTokenHash != previous {
			return repositories.ErrStale
		}
		u.RefreshTokenHash = next
		return nil
	})
}

// ClearRefreshToken removes the stored digest.
func (s *InMemoryIdentityStore) ClearRefreshToken(_ context.Context, id string) error {
	return s.update(id, func(u *models.User) error {
		u.RefreshTokenHash = ""
		return nil
	})
}

// UpdatePassword replaces the stored hash.
func (s *InMemoryIdentityStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.update(id, func(u *models.User) error {
		u.Password = passwordHash
		return nil
	})
}

func (s *InMemoryIdentityStore) update(id string, fn func(*models.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	s.users[id] = user
	return nil
}
