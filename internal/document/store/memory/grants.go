package memory

import (
	"context"
	"sort"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type GrantStore struct {
	db *DB
}

// Create records a grant. An existing grant for the same pair is
// sentinel.ErrConflict.
func (s *GrantStore) Create(ctx context.Context, g *models.Grant) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[g.DocumentID]; !ok {
			return sentinel.ErrNotFound
		}
		key := grantKey{kind: g.Kind, doc: g.DocumentID, user: g.UserID}
		if _, ok := st.grants[key]; ok {
			return sentinel.ErrConflict
		}
		c := *g
		st.grants[key] = &c
		return nil
	})
}

func (s *GrantStore) Delete(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) error {
	return s.db.write(ctx, func(st *state) error {
		key := grantKey{kind: kind, doc: docID, user: userID}
		if _, ok := st.grants[key]; !ok {
			return sentinel.ErrNotFound
		}
		delete(st.grants, key)
		return nil
	})
}

func (s *GrantStore) Exists(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) (bool, error) {
	var found bool
	err := s.db.read(ctx, func(st *state) error {
		_, found = st.grants[grantKey{kind: kind, doc: docID, user: userID}]
		return nil
	})
	return found, err
}

func (s *GrantStore) ListByDocument(ctx context.Context, kind models.GrantKind, docID id.DocumentID) ([]*models.Grant, error) {
	var out []*models.Grant
	err := s.db.read(ctx, func(st *state) error {
		for k, g := range st.grants {
			if k.kind == kind && k.doc == docID {
				c := *g
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, err
}

// ListDocumentIDs returns the documents a user holds a grant of kind on.
func (s *GrantStore) ListDocumentIDs(ctx context.Context, kind models.GrantKind, userID id.UserID) ([]id.DocumentID, error) {
	var out []id.DocumentID
	err := s.db.read(ctx, func(st *state) error {
		for k := range st.grants {
			if k.kind == kind && k.user == userID {
				out = append(out, k.doc)
			}
		}
		return nil
	})
	return out, err
}
