package memory

import (
	"context"
	"sort"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type SignatureStore struct {
	db *DB
}

// Create enforces one record per (document, signer).
func (s *SignatureStore) Create(ctx context.Context, sig *models.Signature) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[sig.DocumentID]; !ok {
			return sentinel.ErrNotFound
		}
		for _, existing := range st.signatures {
			if existing.DocumentID == sig.DocumentID && existing.SignerID == sig.SignerID {
				return sentinel.ErrConflict
			}
		}
		st.signatures[sig.ID] = sig.Clone()
		return nil
	})
}

func (s *SignatureStore) FindByDocumentAndSigner(ctx context.Context, docID id.DocumentID, signerID id.UserID) (*models.Signature, error) {
	var out *models.Signature
	err := s.db.read(ctx, func(st *state) error {
		for _, sig := range st.signatures {
			if sig.DocumentID == docID && sig.SignerID == signerID {
				out = sig.Clone()
				return nil
			}
		}
		return sentinel.ErrNotFound
	})
	return out, err
}

// ListByDocument orders by position then creation.
func (s *SignatureStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Signature, error) {
	return s.collect(ctx, func(sig *models.Signature) bool { return sig.DocumentID == docID })
}

func (s *SignatureStore) ListBySigner(ctx context.Context, signerID id.UserID) ([]*models.Signature, error) {
	return s.collect(ctx, func(sig *models.Signature) bool { return sig.SignerID == signerID })
}

func (s *SignatureStore) collect(ctx context.Context, match func(*models.Signature) bool) ([]*models.Signature, error) {
	var out []*models.Signature
	err := s.db.read(ctx, func(st *state) error {
		for _, sig := range st.signatures {
			if match(sig) {
				out = append(out, sig.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}

func (s *SignatureStore) Update(ctx context.Context, sig *models.Signature) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.signatures[sig.ID]; !ok {
			return sentinel.ErrNotFound
		}
		st.signatures[sig.ID] = sig.Clone()
		return nil
	})
}

func (s *SignatureStore) Delete(ctx context.Context, sigID id.SignatureID) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.signatures[sigID]; !ok {
			return sentinel.ErrNotFound
		}
		delete(st.signatures, sigID)
		return nil
	})
}
