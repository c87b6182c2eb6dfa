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

type VersionStore struct {
	db *sql.DB
}

func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

const versionColumns = `id, document_id, version_type, version_number, signer_id, blob_key,
	digest, content_type, size, created_at`

func scanVersion(row rowScanner) (*models.Version, error) {
	var (
		v      models.Version
		verID  uuid.UUID
		docID  uuid.UUID
		signer uuid.NullUUID
		vtype  string
	)
	if err := row.Scan(&verID, &docID, &vtype, &v.Number, &signer, &v.BlobKey,
		&v.Digest, &v.ContentType, &v.Size, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.ID = id.VersionID(verID)
	v.DocumentID = id.DocumentID(docID)
	v.Type = models.VersionType(vtype)
	if signer.Valid {
		s := id.UserID(signer.UUID)
		v.SignerID = &s
	}
	return &v, nil
}

// Append relies on document_versions_number_key and
// document_versions_original_key for uniqueness.
func (s *VersionStore) Append(ctx context.Context, v *models.Version) error {
	var signer uuid.NullUUID
	if v.SignerID != nil {
		signer = uuid.NullUUID{UUID: uuid.UUID(*v.SignerID), Valid: true}
	}
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO document_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(v.ID), uuid.UUID(v.DocumentID), string(v.Type), v.Number, signer, v.BlobKey,
		v.Digest, v.ContentType, v.Size, v.CreatedAt)
	return pgplatform.Translate(err)
}

func (s *VersionStore) FindByID(ctx context.Context, versionID id.VersionID) (*models.Version, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE id = $1`, uuid.UUID(versionID))
	v, err := scanVersion(row)
	return v, pgplatform.Translate(err)
}

func (s *VersionStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Version, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = $1
		ORDER BY created_at, version_type = 'signed', version_number`, uuid.UUID(docID))
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	defer rows.Close()

	var out []*models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
