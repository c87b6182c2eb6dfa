package memory

import (
	"context"
	"sort"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type VersionStore struct {
	db *DB
}

// Append adds a snapshot. A second original, or a reused signed number, is
// sentinel.ErrConflict.
func (s *VersionStore) Append(ctx context.Context, v *models.Version) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[v.DocumentID]; !ok {
			return sentinel.ErrNotFound
		}
		for _, existing := range st.versions {
			if existing.DocumentID != v.DocumentID || existing.Type != v.Type {
				continue
			}
			if v.Type == models.VersionOriginal || existing.Number == v.Number {
				return sentinel.ErrConflict
			}
		}
		c := *v
		st.versions[v.ID] = &c
		return nil
	})
}

func (s *VersionStore) FindByID(ctx context.Context, versionID id.VersionID) (*models.Version, error) {
	var out *models.Version
	err := s.db.read(ctx, func(st *state) error {
		v, ok := st.versions[versionID]
		if !ok {
			return sentinel.ErrNotFound
		}
		c := *v
		out = &c
		return nil
	})
	return out, err
}

// ListByDocument orders by creation; the original sorts before signed
// versions created in the same instant.
func (s *VersionStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Version, error) {
	var out []*models.Version
	err := s.db.read(ctx, func(st *state) error {
		for _, v := range st.versions {
			if v.DocumentID == docID {
				c := *v
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].Type != out[j].Type {
			return out[i].Type == models.VersionOriginal
		}
		return out[i].Number < out[j].Number
	})
	return out, err
}
