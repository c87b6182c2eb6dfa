package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"lexflow/internal/document/models"
	pgplatform "lexflow/internal/platform/postgres"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/tx"
)

type GrantStore struct {
	db *sql.DB
}

func NewGrantStore(db *sql.DB) *GrantStore {
	return &GrantStore{db: db}
}

// table maps a grant kind to its table. Kinds are validated upstream; the
// switch keeps arbitrary strings out of the SQL.
func table(kind models.GrantKind) (string, error) {
	switch kind {
	case models.GrantVisibility:
		return "document_visibility_grants", nil
	case models.GrantUsability:
		return "document_usability_grants", nil
	}
	return "", fmt.Errorf("unknown grant kind %q", kind)
}

func (s *GrantStore) Create(ctx context.Context, g *models.Grant) error {
	t, err := table(g.Kind)
	if err != nil {
		return err
	}
	_, err = tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO `+t+` (document_id, user_id, granted_by, granted_at) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(g.DocumentID), uuid.UUID(g.UserID), uuid.UUID(g.GrantedBy), g.GrantedAt)
	return pgplatform.Translate(err)
}

func (s *GrantStore) Delete(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`DELETE FROM `+t+` WHERE document_id = $1 AND user_id = $2`, uuid.UUID(docID), uuid.UUID(userID))
	if err != nil {
		return pgplatform.Translate(err)
	}
	return requireAffected(res)
}

func (s *GrantStore) Exists(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) (bool, error) {
	t, err := table(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+t+` WHERE document_id = $1 AND user_id = $2)`,
		uuid.UUID(docID), uuid.UUID(userID)).Scan(&exists)
	return exists, pgplatform.Translate(err)
}

func (s *GrantStore) ListByDocument(ctx context.Context, kind models.GrantKind, docID id.DocumentID) ([]*models.Grant, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT document_id, user_id, granted_by, granted_at FROM `+t+` WHERE document_id = $1 ORDER BY granted_at`,
		uuid.UUID(docID))
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	defer rows.Close()

	var out []*models.Grant
	for rows.Next() {
		var doc, user, by uuid.UUID
		g := &models.Grant{Kind: kind}
		if err := rows.Scan(&doc, &user, &by, &g.GrantedAt); err != nil {
			return nil, err
		}
		g.DocumentID, g.UserID, g.GrantedBy = id.DocumentID(doc), id.UserID(user), id.UserID(by)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *GrantStore) ListDocumentIDs(ctx context.Context, kind models.GrantKind, userID id.UserID) ([]id.DocumentID, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT document_id FROM `+t+` WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	defer rows.Close()

	var out []id.DocumentID
	for rows.Next() {
		var doc uuid.UUID
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, id.DocumentID(doc))
	}
	return out, rows.Err()
}
