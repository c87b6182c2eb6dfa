package service

import (
	"context"

	"lexflow/internal/document/render"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	audit "lexflow/pkg/platform/audit"
)

// UserDirectory supplies role, lawyer flag and signature presence.
type UserDirectory interface {
	Get(ctx context.Context, userID id.UserID) (*idmodels.User, error)
}

// Renderer turns document content into snapshot bytes.
type Renderer interface {
	Render(ctx context.Context, in render.Input) (render.Output, error)
}

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
