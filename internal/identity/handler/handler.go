package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lexflow/internal/identity/models"
	"lexflow/internal/identity/service"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/httputil"
	"lexflow/pkg/requestcontext"
)

type Service interface {
	Upsert(ctx context.Context, cmd service.UpsertCommand) (*models.User, error)
	IssueToken(ctx context.Context, userID id.UserID) (string, time.Time, error)
}

// Handler serves the admin principal endpoints. The caller mounts it
// behind the admin token middleware.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Put("/admin/users/{id}", h.HandleUpsertUser)
	r.Post("/admin/users/{id}/token", h.HandleIssueToken)
}

func (h *Handler) HandleUpsertUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpsertUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.Upsert(ctx, service.UpsertCommand{
		UserID:          userID,
		Email:           req.Email,
		Name:            req.Name,
		Role:            req.role,
		IsLawyer:        req.IsLawyer,
		SignatureOnFile: req.HasSignature,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to upsert user",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// HandleIssueToken mints a bearer token for a known principal. It stands in
// for the external identity provider in development and tests.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, expiresAt, err := h.service.IssueToken(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	})
}
