package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"lexflow/internal/document/models"
	pgplatform "lexflow/internal/platform/postgres"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/tx"
)

type SignatureStore struct {
	db *sql.DB
}

func NewSignatureStore(db *sql.DB) *SignatureStore {
	return &SignatureStore{db: db}
}

const signatureColumns = `id, document_id, signer_id, signed, signed_at, ip_address,
	rejected, rejection_comment, position, created_at`

func scanSignature(row rowScanner) (*models.Signature, error) {
	var (
		sig      models.Signature
		sigID    uuid.UUID
		docID    uuid.UUID
		signerID uuid.UUID
		signedAt sql.NullTime
	)
	if err := row.Scan(&sigID, &docID, &signerID, &sig.Signed, &signedAt, &sig.IPAddress,
		&sig.Rejected, &sig.RejectionComment, &sig.Position, &sig.CreatedAt); err != nil {
		return nil, err
	}
	sig.ID = id.SignatureID(sigID)
	sig.DocumentID = id.DocumentID(docID)
	sig.SignerID = id.UserID(signerID)
	if signedAt.Valid {
		t := signedAt.Time
		sig.SignedAt = &t
	}
	return &sig, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create relies on document_signatures_doc_signer_key for uniqueness.
func (s *SignatureStore) Create(ctx context.Context, sig *models.Signature) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO document_signatures (`+signatureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(sig.ID), uuid.UUID(sig.DocumentID), uuid.UUID(sig.SignerID), sig.Signed, nullTime(sig.SignedAt),
		sig.IPAddress, sig.Rejected, sig.RejectionComment, sig.Position, sig.CreatedAt)
	return pgplatform.Translate(err)
}

func (s *SignatureStore) FindByDocumentAndSigner(ctx context.Context, docID id.DocumentID, signerID id.UserID) (*models.Signature, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+signatureColumns+` FROM document_signatures WHERE document_id = $1 AND signer_id = $2`,
		uuid.UUID(docID), uuid.UUID(signerID))
	sig, err := scanSignature(row)
	return sig, pgplatform.Translate(err)
}

func (s *SignatureStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*models.Signature, error) {
	return s.query(ctx,
		`SELECT `+signatureColumns+` FROM document_signatures WHERE document_id = $1
		ORDER BY position, created_at, id`, uuid.UUID(docID))
}

func (s *SignatureStore) ListBySigner(ctx context.Context, signerID id.UserID) ([]*models.Signature, error) {
	return s.query(ctx,
		`SELECT `+signatureColumns+` FROM document_signatures WHERE signer_id = $1
		ORDER BY position, created_at, id`, uuid.UUID(signerID))
}

func (s *SignatureStore) query(ctx context.Context, query string, args ...any) ([]*models.Signature, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	defer rows.Close()

	var out []*models.Signature
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SignatureStore) Update(ctx context.Context, sig *models.Signature) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE document_signatures SET signed = $2, signed_at = $3, ip_address = $4,
			rejected = $5, rejection_comment = $6, position = $7
		WHERE id = $1`,
		uuid.UUID(sig.ID), sig.Signed, nullTime(sig.SignedAt), sig.IPAddress,
		sig.Rejected, sig.RejectionComment, sig.Position)
	if err != nil {
		return pgplatform.Translate(err)
	}
	return requireAffected(res)
}

func (s *SignatureStore) Delete(ctx context.Context, sigID id.SignatureID) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM document_signatures WHERE id = $1`, uuid.UUID(sigID))
	if err != nil {
		return pgplatform.Translate(err)
	}
	return requireAffected(res)
}
