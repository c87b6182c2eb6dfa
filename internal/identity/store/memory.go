package store

import (
	"context"
	"sync"

	"lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

// InMemory is a process-local user directory.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User)}
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *u
	return &c, nil
}

// Upsert inserts or replaces a user, keeping the original CreatedAt.
func (s *InMemory) Upsert(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *user
	if existing, ok := s.users[user.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.users[user.ID] = &c
	return nil
}
