package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"lexflow/internal/document/models"
	"lexflow/internal/document/permission"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/requestcontext"
)

// CreateRelationship links source to target. The actor must view and own
// both documents unless they are a lawyer. Checks run in a fixed order:
// self link, existence, access, source state, target state, duplicates.
func (s *Service) CreateRelationship(ctx context.Context, actorID id.UserID, sourceID, targetID id.DocumentID, allowPending bool) (*models.Relationship, error) {
	ctx, span := s.startSpan(ctx, "relationship.Create", sourceID)
	var err error
	defer func() { endSpan(span, err) }()

	if sourceID == targetID {
		err = dErrors.New(dErrors.CodeValidation, "a document cannot be related to itself")
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var rel *models.Relationship
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		source, target, err := s.lockPair(txCtx, sourceID, targetID)
		if err != nil {
			return err
		}
		for _, doc := range []*models.Document{source, target} {
			if err := s.requireLinkAccess(txCtx, doc, actor); err != nil {
				return err
			}
		}
		if err := models.CheckSourceState(source.State, allowPending); err != nil {
			return err
		}
		if err := models.CheckTargetState(target.State, allowPending); err != nil {
			return err
		}

		exists, err := s.relationships.ExistsBetween(txCtx, source.ID, target.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check relationships")
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict, "relationship already exists")
		}
		r := &models.Relationship{
			ID:        id.NewRelationshipID(),
			SourceID:  source.ID,
			TargetID:  target.ID,
			CreatedBy: actor.ID,
			CreatedAt: requestcontext.Now(txCtx),
		}
		if err := s.relationships.Create(txCtx, r); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "relationship already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create relationship")
		}
		rel = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:     string(audit.EventRelationshipCreated),
		ActorID:    actor.ID,
		DocumentID: sourceID,
		Reason:     "target " + targetID.String(),
	})
	if s.metrics != nil {
		s.metrics.IncrementRelationshipCreated()
	}
	return rel, nil
}

// DeleteRelationship removes an edge. Only its creator or a lawyer may
// delete it, and never while either endpoint is locked for signatures.
func (s *Service) DeleteRelationship(ctx context.Context, actorID id.UserID, relID id.RelationshipID) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	var rel *models.Relationship
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.findRelationship(txCtx, relID)
		if err != nil {
			return err
		}
		if r.CreatedBy != actor.ID && !actor.IsLawyer() {
			return dErrors.New(dErrors.CodeForbidden, "only the creator or a lawyer can delete this relationship")
		}
		source, target, err := s.lockPair(txCtx, r.SourceID, r.TargetID)
		if err != nil {
			return err
		}
		if source.State.LockedForSignatures() || target.State.LockedForSignatures() {
			return dErrors.New(dErrors.CodeInvalidState, "relationship is locked for signatures")
		}
		if err := s.relationships.Delete(txCtx, r.ID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "relationship not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete relationship")
		}
		rel = r
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Action:     string(audit.EventRelationshipDeleted),
		ActorID:    actor.ID,
		DocumentID: rel.SourceID,
		Reason:     "target " + rel.TargetID.String(),
	})
	s.relationshipsDeleted(1)
	return nil
}

// GetRelationship returns an edge if the actor can view either endpoint.
func (s *Service) GetRelationship(ctx context.Context, actorID id.UserID, relID id.RelationshipID) (*models.Relationship, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	rel, err := s.findRelationship(ctx, relID)
	if err != nil {
		return nil, err
	}
	for _, docID := range []id.DocumentID{rel.SourceID, rel.TargetID} {
		doc, err := s.loadDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		level, err := s.levelOf(ctx, doc, actor)
		if err != nil {
			return nil, err
		}
		if level.CanView() {
			return rel, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeForbidden, "you do not have access to this relationship")
}

// ListRelationships returns edges touching a document in either direction.
func (s *Service) ListRelationships(ctx context.Context, actorID id.UserID, docID id.DocumentID) ([]*models.Relationship, error) {
	if _, err := s.Get(ctx, actorID, docID); err != nil {
		return nil, err
	}
	rels, err := s.relationships.ListByDocument(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list relationships")
	}
	return rels, nil
}

// ListAvailableTargets returns documents the actor can view that could be
// linked from docID: not docID itself, not already related in either
// direction, and in a state a target accepts.
func (s *Service) ListAvailableTargets(ctx context.Context, actorID id.UserID, docID id.DocumentID, allowPending bool) ([]*models.Document, error) {
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

	var (
		docs []*models.Document
		ix   permission.GrantIndex
		rels []*models.Relationship
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, ix, err = s.viewableSet(gctx, actor)
		return err
	})
	g.Go(func() error {
		var err error
		rels, err = s.relationships.ListByDocument(gctx, docID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list relationships")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	related := make(map[id.DocumentID]struct{}, len(rels))
	for _, r := range rels {
		related[r.Other(docID)] = struct{}{}
	}
	out := make([]*models.Document, 0)
	for _, cand := range permission.FilterViewable(docs, actor, ix) {
		if cand.ID == docID {
			continue
		}
		if _, ok := related[cand.ID]; ok {
			continue
		}
		if models.CheckTargetState(cand.State, allowPending) != nil {
			continue
		}
		out = append(out, cand)
	}
	if s.metrics != nil {
		s.metrics.ObserveAvailableTargets(len(out))
	}
	return out, nil
}

// lockPair locks both documents in ID order so two requests linking the
// same pair cannot deadlock.
func (s *Service) lockPair(ctx context.Context, a, b id.DocumentID) (*models.Document, *models.Document, error) {
	first, second := a, b
	if b.String() < a.String() {
		first, second = b, a
	}
	d1, err := s.lockDocument(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	d2, err := s.lockDocument(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == a {
		return d1, d2, nil
	}
	return d2, d1, nil
}

// requireLinkAccess: view plus ownership, with lawyers exempt from the
// ownership part.
func (s *Service) requireLinkAccess(ctx context.Context, doc *models.Document, actor *idmodels.User) error {
	level, err := s.requireView(ctx, doc, actor)
	if err != nil {
		return err
	}
	if level != permission.LevelLawyer && !doc.IsOwner(actor.ID) {
		return dErrors.New(dErrors.CodeForbidden, "you must own both documents to relate them")
	}
	return nil
}

func (s *Service) findRelationship(ctx context.Context, relID id.RelationshipID) (*models.Relationship, error) {
	rel, err := s.relationships.FindByID(ctx, relID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "relationship not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationship")
	}
	return rel, nil
}

func (s *Service) relationshipsDeleted(n int) {
	if s.metrics != nil {
		s.metrics.AddRelationshipsDeleted(n)
	}
}
