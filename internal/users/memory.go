package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a development-only in-memory implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEmail: make(map[string]User)}
}

func (s *MemoryStore) Create(_ context.Context, p CreateParams) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[p.Email]; ok {
		return User{}, ErrConflict
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.byEmail[p.Email] = u
	return u, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
