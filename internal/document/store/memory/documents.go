package memory

import (
	"context"
	"sort"
	"time"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type DocumentStore struct {
	db *DB
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[doc.ID]; ok {
			return sentinel.ErrConflict
		}
		st.documents[doc.ID] = doc.Clone()
		return nil
	})
}

func (s *DocumentStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	var out *models.Document
	err := s.db.read(ctx, func(st *state) error {
		d, ok := st.documents[docID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = d.Clone()
		return nil
	})
	return out, err
}

// FindByIDForUpdate is FindByID: transactions are already serialized.
func (s *DocumentStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	return s.FindByID(ctx, docID)
}

func (s *DocumentStore) FindByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error) {
	var out []*models.Document
	err := s.db.read(ctx, func(st *state) error {
		for _, docID := range ids {
			if d, ok := st.documents[docID]; ok {
				out = append(out, d.Clone())
			}
		}
		return nil
	})
	sortDocuments(out)
	return out, err
}

// List returns every document, newest first.
func (s *DocumentStore) List(ctx context.Context) ([]*models.Document, error) {
	var out []*models.Document
	err := s.db.read(ctx, func(st *state) error {
		out = make([]*models.Document, 0, len(st.documents))
		for _, d := range st.documents {
			out = append(out, d.Clone())
		}
		return nil
	})
	sortDocuments(out)
	return out, err
}

// ListOverdue returns pending documents whose due date is before now.
func (s *DocumentStore) ListOverdue(ctx context.Context, now time.Time) ([]*models.Document, error) {
	var out []*models.Document
	err := s.db.read(ctx, func(st *state) error {
		for _, d := range st.documents {
			if d.IsOverdue(now) {
				out = append(out, d.Clone())
			}
		}
		return nil
	})
	sortDocuments(out)
	return out, err
}

func (s *DocumentStore) Update(ctx context.Context, doc *models.Document) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[doc.ID]; !ok {
			return sentinel.ErrNotFound
		}
		st.documents[doc.ID] = doc.Clone()
		return nil
	})
}

// Delete removes the document and everything it owns.
func (s *DocumentStore) Delete(ctx context.Context, docID id.DocumentID) error {
	return s.db.write(ctx, func(st *state) error {
		if _, ok := st.documents[docID]; !ok {
			return sentinel.ErrNotFound
		}
		delete(st.documents, docID)
		for k, sig := range st.signatures {
			if sig.DocumentID == docID {
				delete(st.signatures, k)
			}
		}
		for k := range st.grants {
			if k.doc == docID {
				delete(st.grants, k)
			}
		}
		for k, v := range st.versions {
			if v.DocumentID == docID {
				delete(st.versions, k)
			}
		}
		for k, r := range st.relationships {
			if r.Touches(docID) {
				delete(st.relationships, k)
			}
		}
		return nil
	})
}

func sortDocuments(docs []*models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID.String() < docs[j].ID.String()
	})
}
