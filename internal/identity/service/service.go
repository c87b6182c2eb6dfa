// Package service manages the principals the document engine authorizes:
// their role, lawyer flag and whether a signature is on file.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/requestcontext"
)

type Store interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// TokenIssuer mints access tokens for a principal.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, time.Time, error)
}

type Service struct {
	users          Store
	tokens         TokenIssuer
	tokenTTL       time.Duration
	logger         *slog.Logger
	auditPublisher audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

func New(users Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{users: users, tokens: tokens, tokenTTL: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertCommand describes a principal as provided by the identity provider.
type UpsertCommand struct {
	UserID          id.UserID
	Email           string
	Name            string
	Role            models.Role
	IsLawyer        bool
	SignatureOnFile bool
}

func (s *Service) Upsert(ctx context.Context, cmd UpsertCommand) (*models.User, error) {
	now := requestcontext.Now(ctx)
	user, err := models.NewUser(cmd.UserID, cmd.Email, cmd.Name, cmd.Role, cmd.IsLawyer, cmd.SignatureOnFile, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	stored, err := s.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventPrincipalUpserted),
		ActorID:   requestcontext.UserID(ctx),
		SubjectID: user.ID,
		Reason:    string(user.Role),
	})
	return stored, nil
}

// Get loads a principal. It also serves as the document engine's user
// directory.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// IssueToken mints an access token for a known principal.
func (s *Service) IssueToken(ctx context.Context, userID id.UserID) (string, time.Time, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.tokens.GenerateAccessToken(userID, s.tokenTTL)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventTokenIssued),
		SubjectID: userID,
	})
	return token, expiresAt, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
