package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"lexflow/internal/document/models"
	pgplatform "lexflow/internal/platform/postgres"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/tx"
)

type RelationshipStore struct {
	db *sql.DB
}

func NewRelationshipStore(db *sql.DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

const relationshipColumns = `id, source_id, target_id, created_by, created_at`

func scanRelationship(row rowScanner) (*models.Relationship, error) {
	var (
		r                      models.Relationship
		relID, src, dst, actor uuid.UUID
	)
	if err := row.Scan(&relID, &src, &dst, &actor, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ID = id.RelationshipID(relID)
	r.SourceID = id.DocumentID(src)
	r.TargetID = id.DocumentID(dst)
	r.CreatedBy = id.UserID(actor)
	return &r, nil
}

// Create relies on document_relationships_pair_key, an index over
// (LEAST, GREATEST), to reject reverse duplicates.
func (s *RelationshipStore) Create(ctx context.Context, r *models.Relationship) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO document_relationships (`+relationshipColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(r.ID), uuid.UUID(r.SourceID), uuid.UUID(r.TargetID), uuid.UUID(r.CreatedBy), r.CreatedAt)
	return pgplatform.Translate(err)
}

func (s *RelationshipStore) FindByID(ctx context.Context, relID id.RelationshipID) (*models.Relationship, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM document_relationships WHERE id = $1`, uuid.UUID(relID))
	r, err := scanRelationship(row)
	return r, pgplatform.Translate(err)
}

func (s *RelationshipStore) ExistsBetween(ctx context.Context, a, b id.DocumentID) (bool, error) {
	var exists bool
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_relationships
			WHERE LEAST(source_id, target_id) = LEAST($1::uuid, $2::uuid)
			AND GREATEST(source_id, target_id) = GREATEST($1::uuid, $2::uuid))`,
		uuid.UUID(a), uuid.UUID(b)).Scan(&exists)
	return exists, pgplatform.Translate(err)
}

func (s *RelationshipStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Relationship, error) {
	return s.query(ctx,
		`SELECT `+relationshipColumns+` FROM document_relationships
		WHERE source_id = $1 OR target_id = $1 ORDER BY created_at, id`, uuid.UUID(docID))
}

func (s *RelationshipStore) DeleteBySource(ctx context.Context, docID id.DocumentID) ([]*models.Relationship, error) {
	return s.query(ctx,
		`DELETE FROM document_relationships WHERE source_id = $1 RETURNING `+relationshipColumns,
		uuid.UUID(docID))
}

func (s *RelationshipStore) Delete(ctx context.Context, relID id.RelationshipID) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM document_relationships WHERE id = $1`, uuid.UUID(relID))
	if err != nil {
		return pgplatform.Translate(err)
	}
	return requireAffected(res)
}

func (s *RelationshipStore) query(ctx context.Context, query string, args ...any) ([]*models.Relationship, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	defer rows.Close()

	var out []*models.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
