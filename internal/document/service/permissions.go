package service

import (
	"context"
	"errors"

	"lexflow/internal/document/models"
	"lexflow/internal/document/permission"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/requestcontext"
)

// GrantResult describes the outcome of a grant request. Implied is set
// when the grantee already holds the capability through ownership, role or
// assignment and nothing was stored.
type GrantResult struct {
	Grant   *models.Grant `json:"grant,omitempty"`
	Created bool          `json:"created"`
	Implied bool          `json:"implied"`
}

var grantEvents = map[models.GrantKind][2]audit.AuditEvent{
	models.GrantVisibility: {audit.EventVisibilityGranted, audit.EventVisibilityRevoked},
	models.GrantUsability:  {audit.EventUsabilityGranted, audit.EventUsabilityRevoked},
}

// ListGrants returns the explicit grants of one kind on a document.
func (s *Service) ListGrants(ctx context.Context, actorID id.UserID, docID id.DocumentID, kind models.GrantKind) ([]*models.Grant, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown grant kind")
	}
	if _, err := s.Get(ctx, actorID, docID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListByDocument(ctx, kind, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}
	return grants, nil
}

// impliedBy reports whether the grantee already has kind through something
// other than an explicit grant.
func impliedBy(doc *models.Document, grantee *idmodels.User, kind models.GrantKind) bool {
	base := permission.Resolve(doc, grantee, permission.Grants{})
	if kind == models.GrantVisibility {
		return base.AtLeast(permission.LevelViewOnly)
	}
	return base.CanUse()
}

// Grant records an explicit visibility or usability grant. Usability on a
// non-public document also records visibility so a usability grant never
// exists without one.
func (s *Service) Grant(ctx context.Context, actorID id.UserID, docID id.DocumentID, kind models.GrantKind, granteeID id.UserID) (*GrantResult, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown grant kind")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	grantee, err := s.actor(ctx, granteeID)
	if err != nil {
		return nil, err
	}

	result := &GrantResult{}
	var alsoVisible bool
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		if err := s.requireManage(txCtx, doc, actor); err != nil {
			return err
		}
		if impliedBy(doc, grantee, kind) {
			result.Implied = true
			return nil
		}

		now := requestcontext.Now(txCtx)
		if kind == models.GrantUsability && !doc.IsPublic {
			created, err := s.insertGrant(txCtx, &models.Grant{
				Kind: models.GrantVisibility, DocumentID: doc.ID, UserID: grantee.ID, GrantedBy: actor.ID, GrantedAt: now,
			})
			if err != nil {
				return err
			}
			alsoVisible = created
		}
		g := &models.Grant{Kind: kind, DocumentID: doc.ID, UserID: grantee.ID, GrantedBy: actor.ID, GrantedAt: now}
		created, err := s.insertGrant(txCtx, g)
		if err != nil {
			return err
		}
		result.Created = created
		if created {
			result.Grant = g
			return nil
		}
		result.Grant, err = s.findGrant(txCtx, kind, doc.ID, grantee.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if alsoVisible {
		s.emit(ctx, audit.Event{
			Action: string(audit.EventVisibilityGranted), ActorID: actor.ID, DocumentID: docID, SubjectID: grantee.ID,
			Reason: "implied by usability grant",
		})
	}
	if result.Created {
		s.emit(ctx, audit.Event{
			Action: string(grantEvents[kind][0]), ActorID: actor.ID, DocumentID: docID, SubjectID: grantee.ID,
		})
	}
	return result, nil
}

// Revoke removes an explicit grant. Revoking visibility also revokes
// usability.
func (s *Service) Revoke(ctx context.Context, actorID id.UserID, docID id.DocumentID, kind models.GrantKind, granteeID id.UserID) error {
	if !kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown grant kind")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}

	var usabilityDropped bool
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		if err := s.requireManage(txCtx, doc, actor); err != nil {
			return err
		}
		if err := s.grants.Delete(txCtx, kind, doc.ID, granteeID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "grant not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke grant")
		}
		if kind == models.GrantVisibility {
			err := s.grants.Delete(txCtx, models.GrantUsability, doc.ID, granteeID)
			switch {
			case err == nil:
				usabilityDropped = true
			case !errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke usability")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Action: string(grantEvents[kind][1]), ActorID: actor.ID, DocumentID: docID, SubjectID: granteeID,
	})
	if usabilityDropped {
		s.emit(ctx, audit.Event{
			Action: string(audit.EventUsabilityRevoked), ActorID: actor.ID, DocumentID: docID, SubjectID: granteeID,
			Reason: "visibility revoked",
		})
	}
	return nil
}

// requireManage allows owners and lawyers to manage grants.
func (s *Service) requireManage(ctx context.Context, doc *models.Document, actor *idmodels.User) error {
	level, err := s.levelOf(ctx, doc, actor)
	if err != nil {
		return err
	}
	if !level.AtLeast(permission.LevelOwner) {
		return dErrors.New(dErrors.CodeForbidden, "only the owner or a lawyer can manage permissions")
	}
	return nil
}

// insertGrant reports false when the grant already existed. The existence
// check runs under the document lock; a failed insert would abort a
// postgres transaction, so the unique key is only the last line.
func (s *Service) insertGrant(ctx context.Context, g *models.Grant) (bool, error) {
	exists, err := s.grants.Exists(ctx, g.Kind, g.DocumentID, g.UserID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grants")
	}
	if exists {
		return false, nil
	}
	if err := s.grants.Create(ctx, g); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store grant")
	}
	return true, nil
}

// backfillVisibility records a visibility grant for every usability holder
// that lacks one. A private document's usability grants need a matching
// visibility grant.
func (s *Service) backfillVisibility(ctx context.Context, doc *models.Document, actorID id.UserID) ([]*models.Grant, error) {
	usable, err := s.grants.ListByDocument(ctx, models.GrantUsability, doc.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grants")
	}
	now := requestcontext.Now(ctx)
	var created []*models.Grant
	for _, u := range usable {
		g := &models.Grant{Kind: models.GrantVisibility, DocumentID: doc.ID, UserID: u.UserID, GrantedBy: actorID, GrantedAt: now}
		ok, err := s.insertGrant(ctx, g)
		if err != nil {
			return nil, err
		}
		if ok {
			created = append(created, g)
		}
	}
	return created, nil
}

func (s *Service) findGrant(ctx context.Context, kind models.GrantKind, docID id.DocumentID, userID id.UserID) (*models.Grant, error) {
	grants, err := s.grants.ListByDocument(ctx, kind, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	for _, g := range grants {
		if g.UserID == userID {
			return g, nil
		}
	}
	return nil, nil
}
