package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lexflow/internal/document/models"
	"lexflow/internal/document/permission"
	"lexflow/internal/document/service"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	"lexflow/pkg/platform/httputil"
	"lexflow/pkg/requestcontext"
)

// Service is the document engine as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, actorID id.UserID, cmd service.CreateCommand) (*models.Document, error)
	Get(ctx context.Context, actorID id.UserID, docID id.DocumentID) (*models.Document, error)
	List(ctx context.Context, actorID id.UserID) ([]*models.Document, error)
	Update(ctx context.Context, actorID id.UserID, docID id.DocumentID, patch models.Patch) (*models.Document, error)
	Delete(ctx context.Context, actorID id.UserID, docID id.DocumentID) error
	Permission(ctx context.Context, actorID id.UserID, docID id.DocumentID) (permission.Level, error)

	ListGrants(ctx context.Context, actorID id.UserID, docID id.DocumentID, kind models.GrantKind) ([]*models.Grant, error)
	Grant(ctx context.Context, actorID id.UserID, docID id.DocumentID, kind models.GrantKind, granteeID id.UserID) (*service.GrantResult, error)
	Revoke(ctx context.Context, actorID id.UserID, docID id.DocumentID, kind models.GrantKind, granteeID id.UserID) error

	RequestSignatures(ctx context.Context, actorID id.UserID, docID id.DocumentID, signers []models.SignerRequest, due *time.Time) ([]*models.Signature, error)
	RemoveSignatureRequest(ctx context.Context, actorID id.UserID, docID id.DocumentID, signerID id.UserID) error
	ListSignatures(ctx context.Context, actorID id.UserID, docID id.DocumentID) ([]*models.Signature, error)
	Sign(ctx context.Context, actorID id.UserID, docID id.DocumentID, signerID id.UserID) (*service.SignResult, error)
	Reject(ctx context.Context, actorID id.UserID, docID id.DocumentID, signerID id.UserID, comment string) (*models.Signature, error)
	Reopen(ctx context.Context, actorID id.UserID, docID id.DocumentID, due *time.Time) (*models.Document, error)
	ListPendingForUser(ctx context.Context, actorID id.UserID) ([]service.PendingSignature, error)
	SweepOverdue(ctx context.Context) (int, error)

	ListVersions(ctx context.Context, actorID id.UserID, docID id.DocumentID) ([]*models.Version, error)
	VersionContent(ctx context.Context, actorID id.UserID, docID id.DocumentID, versionID id.VersionID) (*models.Version, []byte, error)

	CreateRelationship(ctx context.Context, actorID id.UserID, sourceID, targetID id.DocumentID, allowPending bool) (*models.Relationship, error)
	GetRelationship(ctx context.Context, actorID id.UserID, relID id.RelationshipID) (*models.Relationship, error)
	DeleteRelationship(ctx context.Context, actorID id.UserID, relID id.RelationshipID) error
	ListRelationships(ctx context.Context, actorID id.UserID, docID id.DocumentID) ([]*models.Relationship, error)
	ListAvailableTargets(ctx context.Context, actorID id.UserID, docID id.DocumentID, allowPending bool) ([]*models.Document, error)
}

// Handler serves the document, signature and relationship endpoints.
// Authenticated routes expect the auth middleware to have placed the
// caller in the request context.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Get("/permission", h.HandlePermission)

			r.Get("/visibility", h.grantList(models.GrantVisibility))
			r.Post("/visibility", h.grantCreate(models.GrantVisibility))
			r.Delete("/visibility/{userID}", h.grantRevoke(models.GrantVisibility))
			r.Get("/usability", h.grantList(models.GrantUsability))
			r.Post("/usability", h.grantCreate(models.GrantUsability))
			r.Delete("/usability/{userID}", h.grantRevoke(models.GrantUsability))

			r.Get("/signatures", h.HandleListSignatures)
			r.Post("/signatures", h.HandleRequestSignatures)
			r.Delete("/signatures/{signerID}", h.HandleRemoveSignatureRequest)
			r.Post("/sign", h.HandleSign)
			r.Post("/reject", h.HandleReject)
			r.Post("/reopen", h.HandleReopen)

			r.Get("/versions", h.HandleListVersions)
			r.Get("/versions/{versionID}/content", h.HandleVersionContent)

			r.Get("/relationships", h.HandleListRelationships)
			r.Get("/relationships/available", h.HandleAvailableTargets)
		})
	})
	r.Get("/signatures/pending", h.HandlePendingSignatures)
	r.Post("/relationships", h.HandleCreateRelationship)
	r.Get("/relationships/{id}", h.HandleGetRelationship)
	r.Delete("/relationships/{id}", h.HandleDeleteRelationship)
}

// RegisterAdmin mounts operational endpoints. The caller wraps them in the
// admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/signatures/sweep", h.HandleSweep)
}

// =============================================================================
// Documents
// =============================================================================

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.Create(ctx, requestcontext.UserID(ctx), req.command())
	if err != nil {
		h.fail(ctx, w, "failed to create document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.service.List(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to list documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(ctx, requestcontext.UserID(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "failed to get document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.Update(ctx, requestcontext.UserID(ctx), docID, req.patch)
	if err != nil {
		h.fail(ctx, w, "failed to update document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, requestcontext.UserID(ctx), docID); err != nil {
		h.fail(ctx, w, "failed to delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandlePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	level, err := h.service.Permission(ctx, requestcontext.UserID(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "failed to resolve permission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PermissionResponse{
		Document:   docID.String(),
		Permission: level.String(),
	})
}

// =============================================================================
// Grants
// =============================================================================

func (h *Handler) grantList(kind models.GrantKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		docID, ok := documentParam(w, r, "id")
		if !ok {
			return
		}
		grants, err := h.service.ListGrants(ctx, requestcontext.UserID(ctx), docID, kind)
		if err != nil {
			h.fail(ctx, w, "failed to list grants", err, "kind", string(kind))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, grants)
	}
}

func (h *Handler) grantCreate(kind models.GrantKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		docID, ok := documentParam(w, r, "id")
		if !ok {
			return
		}
		req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		res, err := h.service.Grant(ctx, requestcontext.UserID(ctx), docID, kind, req.userID)
		if err != nil {
			h.fail(ctx, w, "failed to grant permission", err, "kind", string(kind))
			return
		}
		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		httputil.WriteJSON(w, status, res)
	}
}

func (h *Handler) grantRevoke(kind models.GrantKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		docID, ok := documentParam(w, r, "id")
		if !ok {
			return
		}
		userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if err := h.service.Revoke(ctx, requestcontext.UserID(ctx), docID, kind, userID); err != nil {
			h.fail(ctx, w, "failed to revoke permission", err, "kind", string(kind))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// Signatures
// =============================================================================

func (h *Handler) HandleListSignatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	sigs, err := h.service.ListSignatures(ctx, requestcontext.UserID(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "failed to list signatures", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sigs)
}

func (h *Handler) HandleRequestSignatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RequestSignaturesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sigs, err := h.service.RequestSignatures(ctx, requestcontext.UserID(ctx), docID, req.signers, req.SignatureDueDate)
	if err != nil {
		h.fail(ctx, w, "failed to request signatures", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sigs)
}

func (h *Handler) HandleRemoveSignatureRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	signerID, err := id.ParseUserID(chi.URLParam(r, "signerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveSignatureRequest(ctx, requestcontext.UserID(ctx), docID, signerID); err != nil {
		h.fail(ctx, w, "failed to remove signature request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	actorID := requestcontext.UserID(ctx)
	res, err := h.service.Sign(ctx, actorID, docID, req.signerOr(actorID))
	if err != nil {
		h.fail(ctx, w, "failed to sign document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	actorID := requestcontext.UserID(ctx)
	sig, err := h.service.Reject(ctx, actorID, docID, req.signerOr(actorID), req.Comment)
	if err != nil {
		h.fail(ctx, w, "failed to reject signature", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sig)
}

func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReopenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.Reopen(ctx, requestcontext.UserID(ctx), docID, req.SignatureDueDate)
	if err != nil {
		h.fail(ctx, w, "failed to reopen signatures", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) HandlePendingSignatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, err := h.service.ListPendingForUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to list pending signatures", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pending)
}

func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.SweepOverdue(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to sweep overdue documents", err)
		return
	}
	h.logger.InfoContext(ctx, "overdue documents swept",
		"request_id", requestcontext.RequestID(ctx),
		"expired", n,
	)
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Expired: n})
}

// =============================================================================
// Versions
// =============================================================================

func (h *Handler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(ctx, requestcontext.UserID(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "failed to list versions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, versions)
}

// HandleVersionContent streams the stored snapshot bytes as-is.
func (h *Handler) HandleVersionContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	versionID, err := id.ParseVersionID(chi.URLParam(r, "versionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, data, err := h.service.VersionContent(ctx, requestcontext.UserID(ctx), docID, versionID)
	if err != nil {
		h.fail(ctx, w, "failed to load version content", err)
		return
	}
	w.Header().Set("Content-Type", v.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"`+v.Digest+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// =============================================================================
// Relationships
// =============================================================================

func (h *Handler) HandleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRelationshipRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rel, err := h.service.CreateRelationship(ctx, requestcontext.UserID(ctx), req.source, req.target, req.AllowPendingSignatures)
	if err != nil {
		h.fail(ctx, w, "failed to create relationship", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rel)
}

func (h *Handler) HandleGetRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	relID, err := id.ParseRelationshipID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rel, err := h.service.GetRelationship(ctx, requestcontext.UserID(ctx), relID)
	if err != nil {
		h.fail(ctx, w, "failed to get relationship", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rel)
}

func (h *Handler) HandleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	relID, err := id.ParseRelationshipID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteRelationship(ctx, requestcontext.UserID(ctx), relID); err != nil {
		h.fail(ctx, w, "failed to delete relationship", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListRelationships(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	rels, err := h.service.ListRelationships(ctx, requestcontext.UserID(ctx), docID)
	if err != nil {
		h.fail(ctx, w, "failed to list relationships", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rels)
}

func (h *Handler) HandleAvailableTargets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := documentParam(w, r, "id")
	if !ok {
		return
	}
	allowPending, err := boolQuery(r, "allow_pending_signatures")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docs, err := h.service.ListAvailableTargets(ctx, requestcontext.UserID(ctx), docID, allowPending)
	if err != nil {
		h.fail(ctx, w, "failed to list available targets", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

// =============================================================================
// Helpers
// =============================================================================

// fail logs at error level only for internal failures; client errors are
// logged at warn.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	args := append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx).String(),
		"error", err,
	}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}

func documentParam(w http.ResponseWriter, r *http.Request, name string) (id.DocumentID, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DocumentID{}, false
	}
	return docID, true
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, dErrors.New(dErrors.CodeBadRequest, name+" must be a boolean")
	}
	return v, nil
}
