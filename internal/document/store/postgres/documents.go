// Package postgres implements the document stores on PostgreSQL. Every
// store joins the transaction carried in the context, if any.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lexflow/internal/document/models"
	pgplatform "lexflow/internal/platform/postgres"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/platform/tx"
)

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, title, content, variables, state, owner_id, assigned_to,
	requires_signature, fully_signed, is_public, signature_due_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d         models.Document
		docID     uuid.UUID
		ownerID   uuid.UUID
		assigned  uuid.NullUUID
		variables []byte
		due       sql.NullTime
		state     string
	)
	if err := row.Scan(&docID, &d.Title, &d.Content, &variables, &state, &ownerID, &assigned,
		&d.RequiresSignature, &d.FullySigned, &d.IsPublic, &due, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.ID = id.DocumentID(docID)
	d.OwnerID = id.UserID(ownerID)
	d.State = models.DocumentState(state)
	if assigned.Valid {
		a := id.UserID(assigned.UUID)
		d.AssignedTo = &a
	}
	if due.Valid {
		t := due.Time
		d.SignatureDueDate = &t
	}
	d.Variables = map[string]string{}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &d.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return &d, nil
}

func documentArgs(d *models.Document) ([]any, error) {
	variables, err := json.Marshal(d.Variables)
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}
	var assigned uuid.NullUUID
	if d.AssignedTo != nil {
		assigned = uuid.NullUUID{UUID: uuid.UUID(*d.AssignedTo), Valid: true}
	}
	return []any{
		uuid.UUID(d.ID), d.Title, d.Content, variables, string(d.State), uuid.UUID(d.OwnerID), assigned,
		d.RequiresSignature, d.FullySigned, d.IsPublic, nullTime(d.SignatureDueDate), d.CreatedAt, d.UpdatedAt,
	}, nil
}

func (s *DocumentStore) Create(ctx context.Context, d *models.Document) error {
	args, err := documentArgs(d)
	if err != nil {
		return err
	}
	_, err = tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, args...)
	return pgplatform.Translate(err)
}

func (s *DocumentStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, uuid.UUID(docID))
	d, err := scanDocument(row)
	return d, pgplatform.Translate(err)
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
// Signing, rejecting and sweeping serialize on this lock.
func (s *DocumentStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, uuid.UUID(docID))
	d, err := scanDocument(row)
	return d, pgplatform.Translate(err)
}

func (s *DocumentStore) FindByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, d := range ids {
		raw[i] = d.String()
	}
	return s.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1::uuid[]) ORDER BY created_at DESC, id`,
		pq.Array(raw))
}

func (s *DocumentStore) List(ctx context.Context) ([]*models.Document, error) {
	return s.query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`)
}

func (s *DocumentStore) ListOverdue(ctx context.Context, now time.Time) ([]*models.Document, error) {
	return s.query(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE state = 'pending_signatures' AND signature_due_date IS NOT NULL AND signature_due_date < $1
		ORDER BY signature_due_date, id`, now)
}

func (s *DocumentStore) query(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DocumentStore) Update(ctx context.Context, d *models.Document) error {
	args, err := documentArgs(d)
	if err != nil {
		return err
	}
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE documents SET title = $2, content = $3, variables = $4, state = $5, owner_id = $6,
			assigned_to = $7, requires_signature = $8, fully_signed = $9, is_public = $10,
			signature_due_date = $11, created_at = $12, updated_at = $13
		WHERE id = $1`, args...)
	if err != nil {
		return pgplatform.Translate(err)
	}
	return requireAffected(res)
}

// Delete relies on ON DELETE CASCADE for owned rows.
func (s *DocumentStore) Delete(ctx context.Context, docID id.DocumentID) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, uuid.UUID(docID))
	if err != nil {
		return pgplatform.Translate(err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
