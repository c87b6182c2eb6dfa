package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestUpsertKeepsCreatedAt() {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &models.User{ID: id.UserID(uuid.New()), Role: models.RoleClient, CreatedAt: created, UpdatedAt: created}
	s.Require().NoError(s.store.Upsert(s.ctx, u))

	later := created.Add(time.Hour)
	s.Require().NoError(s.store.Upsert(s.ctx, &models.User{ID: u.ID, Role: models.RoleLawyer, CreatedAt: later, UpdatedAt: later}))

	found, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(models.RoleLawyer, found.Role)
	s.Equal(created, found.CreatedAt)
	s.Equal(later, found.UpdatedAt)
}

func (s *InMemorySuite) TestNotFound() {
	_, err := s.store.FindByID(s.ctx, id.UserID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
