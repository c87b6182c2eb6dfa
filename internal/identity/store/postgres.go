package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"lexflow/internal/identity/models"
	pgplatform "lexflow/internal/platform/postgres"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	var (
		u    models.User
		uid  uuid.UUID
		role string
	)
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, email, name, role, is_lawyer, has_signature, created_at, updated_at
		FROM users WHERE id = $1`, uuid.UUID(userID)).
		Scan(&uid, &u.Email, &u.Name, &role, &u.LawyerFlag, &u.SignatureOnFile, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, pgplatform.Translate(err)
	}
	u.ID = id.UserID(uid)
	u.Role = models.Role(role)
	return &u, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, u *models.User) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, is_lawyer, has_signature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			is_lawyer = EXCLUDED.is_lawyer,
			has_signature = EXCLUDED.has_signature,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(u.ID), u.Email, u.Name, string(u.Role), u.LawyerFlag, u.SignatureOnFile, u.CreatedAt, u.UpdatedAt)
	return pgplatform.Translate(err)
}
