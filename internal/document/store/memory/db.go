// Package memory keeps document aggregates in process. A DB hands out one
// store per entity; all of them share the same state so RunInTx can commit
// or discard a mutation across entities as a unit.
package memory

import (
	"context"
	"sync"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
)

type grantKey struct {
	kind models.GrantKind
	doc  id.DocumentID
	user id.UserID
}

// state holds immutable records: writers replace a pointer with a fresh
// clone rather than mutating in place, so cloning the maps is enough to
// snapshot it.
type state struct {
	documents     map[id.DocumentID]*models.Document
	signatures    map[id.SignatureID]*models.Signature
	grants        map[grantKey]*models.Grant
	versions      map[id.VersionID]*models.Version
	relationships map[id.RelationshipID]*models.Relationship
}

func newState() *state {
	return &state{
		documents:     map[id.DocumentID]*models.Document{},
		signatures:    map[id.SignatureID]*models.Signature{},
		grants:        map[grantKey]*models.Grant{},
		versions:      map[id.VersionID]*models.Version{},
		relationships: map[id.RelationshipID]*models.Relationship{},
	}
}

func (s *state) clone() *state {
	c := &state{
		documents:     make(map[id.DocumentID]*models.Document, len(s.documents)),
		signatures:    make(map[id.SignatureID]*models.Signature, len(s.signatures)),
		grants:        make(map[grantKey]*models.Grant, len(s.grants)),
		versions:      make(map[id.VersionID]*models.Version, len(s.versions)),
		relationships: make(map[id.RelationshipID]*models.Relationship, len(s.relationships)),
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.signatures {
		c.signatures[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	for k, v := range s.versions {
		c.versions[k] = v
	}
	for k, v := range s.relationships {
		c.relationships[k] = v
	}
	return c
}

// DB is the shared in-memory database.
type DB struct {
	// txMu serializes writers: transactions and standalone writes.
	txMu sync.Mutex
	// mu guards root for readers.
	mu   sync.RWMutex
	root *state
}

func NewDB() *DB {
	return &DB{root: newState()}
}

type txKey struct{}

type memTx struct {
	db *DB
	mu sync.Mutex
	st *state
}

func txFrom(ctx context.Context, db *DB) (*memTx, bool) {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.db != db {
		return nil, false
	}
	return tx, true
}

// RunInTx runs fn against a private copy of the state and publishes it only
// when fn succeeds. Nested calls join the outer transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx, db); ok {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	working := db.root.clone()
	db.mu.RUnlock()

	tx := &memTx{db: db, st: working}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	db.mu.Lock()
	db.root = working
	db.mu.Unlock()
	return nil
}

func (db *DB) read(ctx context.Context, fn func(st *state) error) error {
	if tx, ok := txFrom(ctx, db); ok {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		return fn(tx.st)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.root)
}

// write runs fn inside the caller's transaction, or alone under the writer
// lock. fn must check every precondition before it mutates.
func (db *DB) write(ctx context.Context, fn func(st *state) error) error {
	if tx, ok := txFrom(ctx, db); ok {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		return fn(tx.st)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.root)
}

func (db *DB) Documents() *DocumentStore         { return &DocumentStore{db: db} }
func (db *DB) Signatures() *SignatureStore       { return &SignatureStore{db: db} }
func (db *DB) Grants() *GrantStore               { return &GrantStore{db: db} }
func (db *DB) Versions() *VersionStore           { return &VersionStore{db: db} }
func (db *DB) Relationships() *RelationshipStore { return &RelationshipStore{db: db} }
