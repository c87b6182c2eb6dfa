package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"lexflow/pkg/platform/sentinel"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate(nil))
	assert.ErrorIs(t, Translate(sql.ErrNoRows), sentinel.ErrNotFound)
	assert.ErrorIs(t, Translate(fmt.Errorf("scan: %w", sql.ErrNoRows)), sentinel.ErrNotFound)

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "document_signatures_doc_signer_key"}
	err := Translate(fmt.Errorf("insert: %w", unique))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.Contains(t, err.Error(), "document_signatures_doc_signer_key")

	assert.ErrorIs(t, Translate(&pgconn.PgError{Code: "23503"}), sentinel.ErrNotFound)
	assert.ErrorIs(t, Translate(&pgconn.PgError{Code: "55P03"}), sentinel.ErrLocked)

	other := errors.New("connection reset")
	assert.Equal(t, other, Translate(other))
}
