package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"lexflow/internal/document/models"
	"lexflow/internal/document/permission"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/requestcontext"
)

type CreateCommand struct {
	Title             string
	Content           string
	Variables         map[string]string
	IsPublic          bool
	AssignedTo        *id.UserID
	RequiresSignature bool
}

// Create stores a new draft owned by the actor.
func (s *Service) Create(ctx context.Context, actorID id.UserID, cmd CreateCommand) (*models.Document, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	doc, err := models.NewDocument(id.NewDocumentID(), actor.ID, cmd.Title, cmd.Content, requestcontext.Now(ctx))
	if err != nil {
		return nil, validationFrom(err)
	}
	if cmd.Variables != nil {
		doc.Variables = cmd.Variables
	}
	doc.IsPublic = cmd.IsPublic
	doc.RequiresSignature = cmd.RequiresSignature
	if cmd.AssignedTo != nil {
		if _, err := s.actor(ctx, *cmd.AssignedTo); err != nil {
			return nil, err
		}
		doc.AssignedTo = cmd.AssignedTo
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document")
	}
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventDocumentCreated),
		ActorID:    actor.ID,
		DocumentID: doc.ID,
	})
	return doc, nil
}

// Get returns a document the actor can view.
func (s *Service) Get(ctx context.Context, actorID id.UserID, docID id.DocumentID) (*models.Document, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	doc, err := s.loadDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireView(ctx, doc, actor); err != nil {
		return nil, err
	}
	return doc, nil
}

// Permission returns the actor's resolved level on a document. A level of
// none is a valid answer, not an error.
func (s *Service) Permission(ctx context.Context, actorID id.UserID, docID id.DocumentID) (permission.Level, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return permission.LevelNone, err
	}
	doc, err := s.loadDocument(ctx, docID)
	if err != nil {
		return permission.LevelNone, err
	}
	return s.levelOf(ctx, doc, actor)
}

// List returns every document the actor can view. Grants are fetched once
// and resolved in memory.
func (s *Service) List(ctx context.Context, actorID id.UserID) ([]*models.Document, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	docs, ix, err := s.viewableSet(ctx, actor)
	if err != nil {
		return nil, err
	}
	return permission.FilterViewable(docs, actor, ix), nil
}

// viewableSet loads all documents and the actor's grant index
// concurrently.
func (s *Service) viewableSet(ctx context.Context, actor *idmodels.User) ([]*models.Document, permission.GrantIndex, error) {
	var (
		docs []*models.Document
		ix   permission.GrantIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.documents.List(gctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ix, err = s.grantIndex(gctx, actor.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, permission.GrantIndex{}, err
	}
	return docs, ix, nil
}

// Update applies a partial edit. Content edits need usability; sharing
// fields (is_public, assigned_to) need owner or lawyer. Moving a
// Completed document back to Progress drops its outgoing relationships in
// the same transaction.
func (s *Service) Update(ctx context.Context, actorID id.UserID, docID id.DocumentID, patch models.Patch) (*models.Document, error) {
	ctx, span := s.startSpan(ctx, "document.Update", docID)
	var (
		updated *models.Document
		from    models.DocumentState
		cleared []*models.Relationship
		backed  []*models.Grant
		err     error
	)
	defer func() { endSpan(span, err) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if patch.AssignedTo != nil {
		if _, err = s.actor(ctx, *patch.AssignedTo); err != nil {
			return nil, err
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		level, err := s.levelOf(txCtx, doc, actor)
		if err != nil {
			return err
		}
		if !level.CanUse() {
			return dErrors.New(dErrors.CodeForbidden, "you do not have permission to edit this document")
		}
		if (patch.IsPublic != nil || patch.AssignedTo != nil || patch.ClearAssignee) && !level.AtLeast(permission.LevelOwner) {
			return dErrors.New(dErrors.CodeForbidden, "only the owner or a lawyer can change sharing")
		}

		from = doc.State
		wasPublic := doc.IsPublic
		reopened, err := doc.ApplyPatch(patch, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.documents.Update(txCtx, doc); err != nil {
			return wrapDocumentErr(err, "failed to update document")
		}
		if wasPublic && !doc.IsPublic {
			backed, err = s.backfillVisibility(txCtx, doc, actor.ID)
			if err != nil {
				return err
			}
		}
		if reopened {
			cleared, err = s.relationships.DeleteBySource(txCtx, doc.ID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear relationships")
			}
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, updated, from)
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventDocumentUpdated),
		ActorID:    actor.ID,
		DocumentID: updated.ID,
	})
	for _, g := range backed {
		s.emit(ctx, audit.Event{
			Action: string(audit.EventVisibilityGranted), ActorID: actor.ID, DocumentID: updated.ID, SubjectID: g.UserID,
			Reason: "document made private",
		})
	}
	if len(cleared) > 0 {
		s.relationshipsDeleted(len(cleared))
		s.emit(ctx, audit.Event{
			Action:     string(audit.EventRelationshipsCleared),
			ActorID:    actor.ID,
			DocumentID: updated.ID,
			Reason:     "document reopened for editing",
		})
	}
	return updated, nil
}

// Delete removes a document with its signatures, grants, versions and
// relationships. Only the owner or a lawyer may delete.
func (s *Service) Delete(ctx context.Context, actorID id.UserID, docID id.DocumentID) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		if !actor.IsLawyer() && !doc.IsOwner(actor.ID) {
			return dErrors.New(dErrors.CodeForbidden, "only the owner or a lawyer can delete this document")
		}
		if err := s.documents.Delete(txCtx, doc.ID); err != nil {
			return wrapDocumentErr(err, "failed to delete document")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventDocumentDeleted),
		ActorID:    actor.ID,
		DocumentID: docID,
	})
	return nil
}
