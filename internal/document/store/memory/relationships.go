package memory

import (
	"context"
	"sort"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type RelationshipStore struct {
	db *DB
}

// Create rejects a second edge over the same unordered pair.
func (s *RelationshipStore) Create(ctx context.Context, r *models.Relationship) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[r.SourceID]; !ok {
			return sentinel.ErrNotFound
		}
		if _, ok := st.documents[r.TargetID]; !ok {
			return sentinel.ErrNotFound
		}
		for _, existing := range st.relationships {
			if existing.Connects(r.SourceID, r.TargetID) {
				return sentinel.ErrConflict
			}
		}
		c := *r
		st.relationships[r.ID] = &c
		return nil
	})
}

func (s *RelationshipStore) FindByID(ctx context.Context, relID id.RelationshipID) (*models.Relationship, error) {
	var out *models.Relationship
	err := s.db.read(ctx, func(st *state) error {
		r, ok := st.relationships[relID]
		if !ok {
			return sentinel.ErrNotFound
		}
		c := *r
		out = &c
		return nil
	})
	return out, err
}

// ExistsBetween checks the pair in either direction.
func (s *RelationshipStore) ExistsBetween(ctx context.Context, a, b id.DocumentID) (bool, error) {
	var found bool
	err := s.db.read(ctx, func(st *state) error {
		for _, r := range st.relationships {
			if r.Connects(a, b) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// ListByDocument returns edges in both directions, oldest first.
func (s *RelationshipStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Relationship, error) {
	var out []*models.Relationship
	err := s.db.read(ctx, func(st *state) error {
		for _, r := range st.relationships {
			if r.Touches(docID) {
				c := *r
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// DeleteBySource removes every edge docID originates and returns them.
func (s *RelationshipStore) DeleteBySource(ctx context.Context, docID id.DocumentID) ([]*models.Relationship, error) {
	var removed []*models.Relationship
	err := s.db.write(ctx, func(st *state) error {
		for k, r := range st.relationships {
			if r.SourceID == docID {
				removed = append(removed, r)
				delete(st.relationships, k)
			}
		}
		return nil
	})
	return removed, err
}

func (s *RelationshipStore) Delete(ctx context.Context, relID id.RelationshipID) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.relationships[relID]; !ok {
			return sentinel.ErrNotFound
		}
		delete(st.relationships, relID)
		return nil
	})
}
