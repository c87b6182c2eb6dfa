// Package service implements the document governance engine: permission
// resolution, the signature lifecycle, version snapshots and the
// relationship graph.
//
// Every mutation runs inside TxRunner.RunInTx and reads the document it
// changes with FindByIDForUpdate, so concurrent signers serialize on the
// document. Audit events are emitted only after the transaction commits.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	docmetrics "lexflow/internal/document/metrics"
	"lexflow/internal/document/models"
	"lexflow/internal/document/permission"
	"lexflow/internal/document/render"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/requestcontext"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	FindByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, docID id.DocumentID) error
}

type SignatureStore interface {
	Create(ctx context.Context, sig *models.Signature) error
	FindByDocumentAndSigner(ctx context.Context, docID id.DocumentID, signerID id.UserID) (*models.Signature, error)
	ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Signature, error)
	ListBySigner(ctx context.Context, signerID id.UserID) ([]*models.Signature, error)
	Update(ctx context.Context, sig *models.Signature) error
	Delete(ctx context.Context, sigID id.SignatureID) error
}

type GrantStore interface {
	Create(ctx context.Context, g *models.Grant) error
	Delete(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) error
	Exists(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) (bool, error)
	ListByDocument(ctx context.Context, kind models.GrantKind, docID id.DocumentID) ([]*models.Grant, error)
	ListDocumentIDs(ctx context.Context, kind models.GrantKind, userID id.UserID) ([]id.DocumentID, error)
}

type VersionStore interface {
	Append(ctx context.Context, v *models.Version) error
	FindByID(ctx context.Context, versionID id.VersionID) (*models.Version, error)
	ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Version, error)
}

type RelationshipStore interface {
	Create(ctx context.Context, r *models.Relationship) error
	FindByID(ctx context.Context, relID id.RelationshipID) (*models.Relationship, error)
	ExistsBetween(ctx context.Context, a, b id.DocumentID) (bool, error)
	ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Relationship, error)
	DeleteBySource(ctx context.Context, docID id.DocumentID) ([]*models.Relationship, error)
	Delete(ctx context.Context, relID id.RelationshipID) error
}

// Stores groups the persistence ports. All of them must join the
// transaction TxRunner places in the context.
type Stores struct {
	Documents     DocumentStore
	Signatures    SignatureStore
	Grants        GrantStore
	Versions      VersionStore
	Relationships RelationshipStore
}

// TxRunner runs fn in one transaction. Stores called with the context
// passed to fn participate in it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	documents     DocumentStore
	signatures    SignatureStore
	grants        GrantStore
	versions      VersionStore
	relationships RelationshipStore
	tx            TxRunner
	users         UserDirectory
	renderer      Renderer
	blobs         BlobStore

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *docmetrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *docmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithRenderer replaces the plain-text renderer.
func WithRenderer(r Renderer) Option {
	return func(s *Service) {
		s.renderer = r
	}
}

func New(stores Stores, tx TxRunner, users UserDirectory, blobs BlobStore, opts ...Option) (*Service, error) {
	switch {
	case stores.Documents == nil || stores.Signatures == nil || stores.Grants == nil ||
		stores.Versions == nil || stores.Relationships == nil:
		return nil, errors.New("all document stores are required")
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	case users == nil:
		return nil, errors.New("user directory is required")
	case blobs == nil:
		return nil, errors.New("blob store is required")
	}

	s := &Service{
		documents:     stores.Documents,
		signatures:    stores.Signatures,
		grants:        stores.Grants,
		versions:      stores.Versions,
		relationships: stores.Relationships,
		tx:            tx,
		users:         users,
		blobs:         blobs,
		renderer:      render.Text{},
		logger:        slog.Default(),
		tracer:        otel.Tracer("lexflow/document"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string, docID id.DocumentID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("document.id", docID.String()),
		attribute.String("user.id", requestcontext.UserID(ctx).String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// actor loads the principal acting on this request.
func (s *Service) actor(ctx context.Context, userID id.UserID) (*idmodels.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) loadDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return nil, wrapDocumentErr(err, "failed to load document")
	}
	return doc, nil
}

func (s *Service) lockDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByIDForUpdate(ctx, docID)
	if err != nil {
		return nil, wrapDocumentErr(err, "failed to lock document")
	}
	return doc, nil
}

// grantsFor fetches the explicit grants one user holds on one document.
func (s *Service) grantsFor(ctx context.Context, docID id.DocumentID, userID id.UserID) (permission.Grants, error) {
	visible, err := s.grants.Exists(ctx, models.GrantVisibility, docID, userID)
	if err != nil {
		return permission.Grants{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grants")
	}
	usable, err := s.grants.Exists(ctx, models.GrantUsability, docID, userID)
	if err != nil {
		return permission.Grants{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grants")
	}
	return permission.Grants{Visible: visible, Usable: usable}, nil
}

func (s *Service) levelOf(ctx context.Context, doc *models.Document, user *idmodels.User) (permission.Level, error) {
	// Lawyers and owners resolve without touching the grant tables.
	if user.IsLawyer() {
		return permission.LevelLawyer, nil
	}
	if doc.IsOwner(user.ID) {
		return permission.LevelOwner, nil
	}
	g, err := s.grantsFor(ctx, doc.ID, user.ID)
	if err != nil {
		return permission.LevelNone, err
	}
	return permission.Resolve(doc, user, g), nil
}

// requireView fails Forbidden when user cannot see doc.
func (s *Service) requireView(ctx context.Context, doc *models.Document, user *idmodels.User) (permission.Level, error) {
	level, err := s.levelOf(ctx, doc, user)
	if err != nil {
		return level, err
	}
	if !level.CanView() {
		return level, dErrors.New(dErrors.CodeForbidden, "you do not have access to this document")
	}
	return level, nil
}

// grantIndex prefetches every grant a user holds for batch resolution.
func (s *Service) grantIndex(ctx context.Context, userID id.UserID) (permission.GrantIndex, error) {
	visible, err := s.grants.ListDocumentIDs(ctx, models.GrantVisibility, userID)
	if err != nil {
		return permission.GrantIndex{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visibility grants")
	}
	usable, err := s.grants.ListDocumentIDs(ctx, models.GrantUsability, userID)
	if err != nil {
		return permission.GrantIndex{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load usability grants")
	}
	return permission.NewGrantIndex(visible, usable), nil
}

func wrapDocumentErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrLocked):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document is being modified, retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// validationFrom converts model invariant violations into validation
// errors for the caller.
func validationFrom(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if event.ActorID.IsNil() {
		event.ActorID = requestcontext.UserID(ctx)
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"document_id", event.DocumentID.String(),
			"error", err,
		)
	}
}

func (s *Service) logTransition(ctx context.Context, doc *models.Document, from models.DocumentState) {
	if from == doc.State {
		return
	}
	s.logger.InfoContext(ctx, "document state changed",
		"document_id", doc.ID.String(),
		"user_id", requestcontext.UserID(ctx).String(),
		"from_state", string(from),
		"to_state", string(doc.State),
	)
}
