package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lexflow/internal/document/models"
	id "lexflow/pkg/domain"
	"lexflow/pkg/platform/sentinel"
)

type MemoryDBSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
	now time.Time
}

func TestMemoryDBSuite(t *testing.T) {
	suite.Run(t, new(MemoryDBSuite))
}

func (s *MemoryDBSuite) SetupTest() {
	s.db = NewDB()
	s.ctx = context.Background()
	s.now = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
}

func (s *MemoryDBSuite) newDoc() *models.Document {
	d, err := models.NewDocument(id.NewDocumentID(), id.UserID(uuid.New()), "Retainer", "body", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Documents().Create(s.ctx, d))
	return d
}

func (s *MemoryDBSuite) TestDocumentsAreCopied() {
	d := s.newDoc()
	d.Title = "mutated after create"

	found, err := s.db.Documents().FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Retainer", found.Title)

	found.Variables["k"] = "v"
	again, err := s.db.Documents().FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Empty(again.Variables)
}

func (s *MemoryDBSuite) TestNotFound() {
	_, err := s.db.Documents().FindByID(s.ctx, id.NewDocumentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.db.Relationships().Delete(s.ctx, id.NewRelationshipID()), sentinel.ErrNotFound)
	s.ErrorIs(s.db.Grants().Delete(s.ctx, models.GrantVisibility, id.NewDocumentID(), id.UserID(uuid.New())), sentinel.ErrNotFound)
}

func (s *MemoryDBSuite) TestSignatureUniqueness() {
	d := s.newDoc()
	signer := id.UserID(uuid.New())

	const goroutines = 20
	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, _ := models.NewSignature(d.ID, models.SignerRequest{SignerID: signer}, s.now)
			err := s.db.Signatures().Create(s.ctx, sig)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *MemoryDBSuite) TestRelationshipPairUniqueness() {
	a, b := s.newDoc(), s.newDoc()
	rels := s.db.Relationships()

	s.Require().NoError(rels.Create(s.ctx, &models.Relationship{ID: id.NewRelationshipID(), SourceID: a.ID, TargetID: b.ID}))
	s.ErrorIs(rels.Create(s.ctx, &models.Relationship{ID: id.NewRelationshipID(), SourceID: a.ID, TargetID: b.ID}), sentinel.ErrConflict)
	s.ErrorIs(rels.Create(s.ctx, &models.Relationship{ID: id.NewRelationshipID(), SourceID: b.ID, TargetID: a.ID}), sentinel.ErrConflict)

	exists, err := rels.ExistsBetween(s.ctx, b.ID, a.ID)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *MemoryDBSuite) TestVersionUniqueness() {
	d := s.newDoc()
	versions := s.db.Versions()

	s.Require().NoError(versions.Append(s.ctx, &models.Version{ID: id.NewVersionID(), DocumentID: d.ID, Type: models.VersionOriginal}))
	s.ErrorIs(versions.Append(s.ctx, &models.Version{ID: id.NewVersionID(), DocumentID: d.ID, Type: models.VersionOriginal}), sentinel.ErrConflict)

	s.Require().NoError(versions.Append(s.ctx, &models.Version{ID: id.NewVersionID(), DocumentID: d.ID, Type: models.VersionSigned, Number: 1}))
	s.ErrorIs(versions.Append(s.ctx, &models.Version{ID: id.NewVersionID(), DocumentID: d.ID, Type: models.VersionSigned, Number: 1}), sentinel.ErrConflict)

	list, err := versions.ListByDocument(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(models.VersionOriginal, list[0].Type)
}

func (s *MemoryDBSuite) TestDeleteCascades() {
	d, other := s.newDoc(), s.newDoc()
	user := id.UserID(uuid.New())

	sig, _ := models.NewSignature(d.ID, models.SignerRequest{SignerID: user}, s.now)
	s.Require().NoError(s.db.Signatures().Create(s.ctx, sig))
	s.Require().NoError(s.db.Grants().Create(s.ctx, &models.Grant{Kind: models.GrantVisibility, DocumentID: d.ID, UserID: user}))
	s.Require().NoError(s.db.Versions().Append(s.ctx, &models.Version{ID: id.NewVersionID(), DocumentID: d.ID, Type: models.VersionOriginal}))
	s.Require().NoError(s.db.Relationships().Create(s.ctx, &models.Relationship{ID: id.NewRelationshipID(), SourceID: other.ID, TargetID: d.ID}))

	s.Require().NoError(s.db.Documents().Delete(s.ctx, d.ID))

	sigs, _ := s.db.Signatures().ListByDocument(s.ctx, d.ID)
	s.Empty(sigs)
	has, _ := s.db.Grants().Exists(s.ctx, models.GrantVisibility, d.ID, user)
	s.False(has)
	versions, _ := s.db.Versions().ListByDocument(s.ctx, d.ID)
	s.Empty(versions)
	rels, _ := s.db.Relationships().ListByDocument(s.ctx, other.ID)
	s.Empty(rels)
}

func (s *MemoryDBSuite) TestRunInTx() {
	s.Run("commit publishes all writes", func() {
		d := s.newDoc()
		err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
			d.State = models.StateCompleted
			if err := s.db.Documents().Update(ctx, d); err != nil {
				return err
			}
			sig, _ := models.NewSignature(d.ID, models.SignerRequest{SignerID: id.UserID(uuid.New())}, s.now)
			return s.db.Signatures().Create(ctx, sig)
		})
		s.Require().NoError(err)

		found, _ := s.db.Documents().FindByID(s.ctx, d.ID)
		s.Equal(models.StateCompleted, found.State)
		sigs, _ := s.db.Signatures().ListByDocument(s.ctx, d.ID)
		s.Len(sigs, 1)
	})

	s.Run("failure discards all writes", func() {
		d := s.newDoc()
		boom := errors.New("render failed")
		err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
			d.State = models.StateFullySigned
			if err := s.db.Documents().Update(ctx, d); err != nil {
				return err
			}
			sig, _ := models.NewSignature(d.ID, models.SignerRequest{SignerID: id.UserID(uuid.New())}, s.now)
			if err := s.db.Signatures().Create(ctx, sig); err != nil {
				return err
			}
			return boom
		})
		s.ErrorIs(err, boom)

		found, _ := s.db.Documents().FindByID(s.ctx, d.ID)
		s.Equal(models.StateDraft, found.State)
		sigs, _ := s.db.Signatures().ListByDocument(s.ctx, d.ID)
		s.Empty(sigs)
	})

	s.Run("reads inside a transaction see its writes", func() {
		d := s.newDoc()
		err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
			d.Title = "inside"
			s.Require().NoError(s.db.Documents().Update(ctx, d))
			found, err := s.db.Documents().FindByID(ctx, d.ID)
			s.Require().NoError(err)
			s.Equal("inside", found.Title)

			outside, err := s.db.Documents().FindByID(s.ctx, d.ID)
			s.Require().NoError(err)
			s.Equal("Retainer", outside.Title)
			return nil
		})
		s.Require().NoError(err)
	})

	s.Run("nested transactions join the outer one", func() {
		d := s.newDoc()
		err := s.db.RunInTx(s.ctx, func(ctx context.Context) error {
			return s.db.RunInTx(ctx, func(inner context.Context) error {
				d.Title = "nested"
				return s.db.Documents().Update(inner, d)
			})
		})
		s.Require().NoError(err)
		found, _ := s.db.Documents().FindByID(s.ctx, d.ID)
		s.Equal("nested", found.Title)
	})
}

func (s *MemoryDBSuite) TestListOverdue() {
	due := s.now.Add(-time.Hour)
	overdue := s.newDoc()
	overdue.ApplySignatureRequest(&due, s.now)
	s.Require().NoError(s.db.Documents().Update(s.ctx, overdue))

	future := s.now.Add(time.Hour)
	pending := s.newDoc()
	pending.ApplySignatureRequest(&future, s.now)
	s.Require().NoError(s.db.Documents().Update(s.ctx, pending))

	list, err := s.db.Documents().ListOverdue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(overdue.ID, list[0].ID)
}

func (s *MemoryDBSuite) TestDeleteBySource() {
	a, b, c := s.newDoc(), s.newDoc(), s.newDoc()
	rels := s.db.Relationships()
	s.Require().NoError(rels.Create(s.ctx, &models.Relationship{ID: id.NewRelationshipID(), SourceID: a.ID, TargetID: b.ID}))
	s.Require().NoError(rels.Create(s.ctx, &models.Relationship{ID: id.NewRelationshipID(), SourceID: c.ID, TargetID: a.ID}))

	removed, err := rels.DeleteBySource(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(removed, 1)

	remaining, err := rels.ListByDocument(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(c.ID, remaining[0].SourceID)
}
