package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lexflow/internal/identity/models"
	"lexflow/internal/identity/store"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	auditmemory "lexflow/pkg/platform/audit/store/memory"
	"lexflow/pkg/platform/audit/publisher"
)

type stubIssuer struct {
	err error
}

func (s stubIssuer) GenerateAccessToken(userID id.UserID, ttl time.Duration) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "token-" + userID.String(), time.Now().Add(ttl), nil
}

type ServiceSuite struct {
	suite.Suite
	users   *store.InMemory
	events  *auditmemory.InMemoryStore
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = store.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.service = New(s.users, stubIssuer{},
		WithAuditPublisher(publisher.NewPublisher(s.events)),
		WithTokenTTL(time.Minute),
	)
}

func (s *ServiceSuite) TestUpsert() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())

	s.Run("creates principal and emits audit event", func() {
		user, err := s.service.Upsert(ctx, UpsertCommand{
			UserID: userID, Email: "ana@example.com", Name: "Ana", Role: models.RoleLawyer,
		})
		s.Require().NoError(err)
		s.True(user.IsLawyer())

		all, err := s.events.ListAll(ctx)
		s.Require().NoError(err)
		s.Require().Len(all, 1)
		s.Equal(string(audit.EventPrincipalUpserted), all[0].Action)
		s.Equal(audit.CategorySecurity, all[0].Category)
	})

	s.Run("updates keep creation time", func() {
		first, err := s.service.Get(ctx, userID)
		s.Require().NoError(err)
		updated, err := s.service.Upsert(ctx, UpsertCommand{
			UserID: userID, Email: "ana@example.com", Role: models.RoleClient, SignatureOnFile: true,
		})
		s.Require().NoError(err)
		s.True(updated.SignatureOnFile)
		s.False(updated.IsLawyer())
		s.Equal(first.CreatedAt, updated.CreatedAt)
	})

	s.Run("invalid email is a validation error", func() {
		_, err := s.service.Upsert(ctx, UpsertCommand{UserID: userID, Email: "not-an-email"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("nil id is a validation error", func() {
		_, err := s.service.Upsert(ctx, UpsertCommand{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestGetUnknownUser() {
	_, err := s.service.Get(context.Background(), id.UserID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestIssueToken() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())

	_, _, err := s.service.IssueToken(ctx, userID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Upsert(ctx, UpsertCommand{UserID: userID, Role: models.RoleClient})
	s.Require().NoError(err)

	token, expiresAt, err := s.service.IssueToken(ctx, userID)
	s.Require().NoError(err)
	s.Equal("token-"+userID.String(), token)
	s.WithinDuration(time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	failing := New(s.users, stubIssuer{err: errors.New("boom")})
	_, _, err = failing.IssueToken(ctx, userID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
