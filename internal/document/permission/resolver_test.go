package permission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lexflow/internal/document/models"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
)

type ResolverSuite struct {
	suite.Suite
	owner    *idmodels.User
	lawyer   *idmodels.User
	flagged  *idmodels.User
	delegate *idmodels.User
	stranger *idmodels.User
	now      time.Time
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func newUser(role idmodels.Role, lawyer bool) *idmodels.User {
	return &idmodels.User{ID: id.UserID(uuid.New()), Role: role, LawyerFlag: lawyer}
}

func (s *ResolverSuite) SetupTest() {
	s.owner = newUser(idmodels.RoleClient, false)
	s.lawyer = newUser(idmodels.RoleLawyer, false)
	s.flagged = newUser(idmodels.RoleAdmin, true)
	s.delegate = newUser(idmodels.RoleClient, false)
	s.stranger = newUser(idmodels.RoleClient, false)
	s.now = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
}

func (s *ResolverSuite) doc(state models.DocumentState) *models.Document {
	d, err := models.NewDocument(id.NewDocumentID(), s.owner.ID, "Engagement letter", "", s.now)
	s.Require().NoError(err)
	d.State = state
	return d
}

func (s *ResolverSuite) TestChecklistOrder() {
	s.Run("lawyer role wins over everything", func() {
		d := s.doc(models.StateDraft)
		s.Equal(LevelLawyer, Resolve(d, s.lawyer, Grants{}))
	})

	s.Run("lawyer flag counts as lawyer", func() {
		d := s.doc(models.StateDraft)
		s.Equal(LevelLawyer, Resolve(d, s.flagged, Grants{}))
	})

	s.Run("owner", func() {
		d := s.doc(models.StateDraft)
		s.Equal(LevelOwner, Resolve(d, s.owner, Grants{Visible: true}))
	})

	s.Run("lawyer who owns the document resolves as lawyer", func() {
		d := s.doc(models.StateDraft)
		d.OwnerID = s.lawyer.ID
		s.Equal(LevelLawyer, Resolve(d, s.lawyer, Grants{}))
	})

	s.Run("assigned delegate gets usability", func() {
		d := s.doc(models.StateProgress)
		d.AssignedTo = &s.delegate.ID
		s.Equal(LevelUsability, Resolve(d, s.delegate, Grants{}))
	})

	s.Run("published unassigned template is usable by anyone", func() {
		d := s.doc(models.StatePublished)
		s.Equal(LevelUsability, Resolve(d, s.stranger, Grants{}))
	})

	s.Run("published but assigned is not a template", func() {
		d := s.doc(models.StatePublished)
		d.AssignedTo = &s.delegate.ID
		s.Equal(LevelNone, Resolve(d, s.stranger, Grants{}))
	})

	s.Run("usability grant outranks visibility grant", func() {
		d := s.doc(models.StateCompleted)
		s.Equal(LevelUsability, Resolve(d, s.stranger, Grants{Visible: true, Usable: true}))
	})

	s.Run("visibility grant is view only", func() {
		d := s.doc(models.StateCompleted)
		d.IsPublic = true
		s.Equal(LevelViewOnly, Resolve(d, s.stranger, Grants{Visible: true}))
	})

	s.Run("public document", func() {
		d := s.doc(models.StateCompleted)
		d.IsPublic = true
		s.Equal(LevelPublicAccess, Resolve(d, s.stranger, Grants{}))
	})

	s.Run("no access", func() {
		d := s.doc(models.StateCompleted)
		s.Equal(LevelNone, Resolve(d, s.stranger, Grants{}))
		s.False(CanView(d, s.stranger, Grants{}))
	})

	s.Run("nil inputs resolve to none", func() {
		s.Equal(LevelNone, Resolve(nil, s.owner, Grants{}))
		s.Equal(LevelNone, Resolve(s.doc(models.StateDraft), nil, Grants{}))
	})
}

func (s *ResolverSuite) TestLawyerCanAlwaysUse() {
	states := []models.DocumentState{
		models.StateDraft, models.StateProgress, models.StatePublished, models.StateCompleted,
		models.StatePendingSignatures, models.StateFullySigned, models.StateRejected, models.StateExpired,
	}
	for _, st := range states {
		for _, g := range []Grants{{}, {Visible: true}, {Usable: true}, {Visible: true, Usable: true}} {
			d := s.doc(st)
			s.True(CanUse(d, s.lawyer, g), "state %s grants %+v", st, g)
		}
	}
}

func (s *ResolverSuite) TestDeterministic() {
	d := s.doc(models.StateCompleted)
	d.IsPublic = true
	first := Resolve(d, s.stranger, Grants{Visible: true})
	for range 100 {
		s.Equal(first, Resolve(d, s.stranger, Grants{Visible: true}))
	}
}

func (s *ResolverSuite) TestCanUseLevels() {
	s.False(LevelNone.CanUse())
	s.False(LevelPublicAccess.CanUse())
	s.False(LevelViewOnly.CanUse())
	s.True(LevelUsability.CanUse())
	s.True(LevelOwner.CanUse())
	s.True(LevelLawyer.CanUse())
	s.True(LevelOwner.AtLeast(LevelOwner))
	s.False(LevelUsability.AtLeast(LevelOwner))
}

func (s *ResolverSuite) TestBatchMatchesSingle() {
	visibleDoc := s.doc(models.StateCompleted)
	usableDoc := s.doc(models.StateCompleted)
	hiddenDoc := s.doc(models.StateCompleted)
	publicDoc := s.doc(models.StateDraft)
	publicDoc.IsPublic = true
	docs := []*models.Document{visibleDoc, usableDoc, hiddenDoc, publicDoc}

	ix := NewGrantIndex(
		[]id.DocumentID{visibleDoc.ID, usableDoc.ID},
		[]id.DocumentID{usableDoc.ID},
	)
	levels := ResolveAll(docs, s.stranger, ix)
	s.Equal(LevelViewOnly, levels[visibleDoc.ID])
	s.Equal(LevelUsability, levels[usableDoc.ID])
	s.Equal(LevelNone, levels[hiddenDoc.ID])
	s.Equal(LevelPublicAccess, levels[publicDoc.ID])

	for _, d := range docs {
		s.Equal(Resolve(d, s.stranger, ix.For(d.ID)), levels[d.ID])
	}

	viewable := FilterViewable(docs, s.stranger, ix)
	s.Equal([]*models.Document{visibleDoc, usableDoc, publicDoc}, viewable)
}

func (s *ResolverSuite) TestLevelText() {
	for l := LevelNone; l <= LevelLawyer; l++ {
		b, err := l.MarshalText()
		s.Require().NoError(err)
		var back Level
		s.Require().NoError(back.UnmarshalText(b))
		s.Equal(l, back)
	}
	var bad Level
	s.Error(bad.UnmarshalText([]byte("superuser")))
}
