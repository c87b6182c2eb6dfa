package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"lexflow/internal/document/models"
	"lexflow/internal/document/permission"
	idmodels "lexflow/internal/identity/models"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/requestcontext"
)

const maxRejectionComment = 2000

// SignResult is the outcome of a successful sign.
type SignResult struct {
	Document  *models.Document  `json:"document"`
	Signature *models.Signature `json:"signature"`
	// Versions holds the snapshots appended by this call: the signed
	// version, preceded by the original when it was captured now.
	Versions []*models.Version `json:"versions"`
}

// PendingSignature is an open signature request for the calling user.
type PendingSignature struct {
	Signature *models.Signature `json:"signature"`
	Document  *models.Document  `json:"document"`
}

// RequestSignatures creates a signer record per listed user, skipping
// users that already have one, and moves the document to
// PendingSignatures.
func (s *Service) RequestSignatures(ctx context.Context, actorID id.UserID, docID id.DocumentID, signers []models.SignerRequest, due *time.Time) ([]*models.Signature, error) {
	ctx, span := s.startSpan(ctx, "document.RequestSignatures", docID)
	var err error
	defer func() { endSpan(span, err) }()

	if len(signers) == 0 {
		err = dErrors.New(dErrors.CodeValidation, "at least one signer is required")
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if due != nil && !due.After(now) {
		err = dErrors.New(dErrors.CodeValidation, "signature due date must be in the future")
		return nil, err
	}
	for _, req := range signers {
		if req.SignerID.IsNil() {
			err = dErrors.New(dErrors.CodeValidation, "signer is required")
			return nil, err
		}
		if _, err = s.actor(ctx, req.SignerID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				err = dErrors.New(dErrors.CodeNotFound, "signer not found: "+req.SignerID.String())
			}
			return nil, err
		}
	}

	var (
		all   []*models.Signature
		added []*models.Signature
		from  models.DocumentState
		after *models.Document
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		level, err := s.levelOf(txCtx, doc, actor)
		if err != nil {
			return err
		}
		if !level.AtLeast(permission.LevelOwner) {
			return dErrors.New(dErrors.CodeForbidden, "only the owner or a lawyer can request signatures")
		}
		if err := doc.CanRequestSignatures(); err != nil {
			return err
		}

		existing, err := s.signatures.ListByDocument(txCtx, doc.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
		}
		seen := make(map[id.UserID]bool, len(existing)+len(signers))
		for _, sig := range existing {
			seen[sig.SignerID] = true
		}
		for _, req := range signers {
			if seen[req.SignerID] {
				continue
			}
			seen[req.SignerID] = true
			sig, err := models.NewSignature(doc.ID, req, now)
			if err != nil {
				return validationFrom(err)
			}
			if err := s.signatures.Create(txCtx, sig); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "signer already requested")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create signature request")
			}
			added = append(added, sig)
		}

		from = doc.State
		doc.ApplySignatureRequest(due, now)
		doc.ApplyCompleteness(models.IsComplete(append(existing, added...)), now)
		if err := s.documents.Update(txCtx, doc); err != nil {
			return wrapDocumentErr(err, "failed to update document")
		}
		all, err = s.signatures.ListByDocument(txCtx, doc.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
		}
		after = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, after, from)
	for _, sig := range added {
		s.emit(ctx, audit.Event{
			Action:     string(audit.EventSignaturesRequested),
			ActorID:    actor.ID,
			DocumentID: docID,
			SubjectID:  sig.SignerID,
		})
	}
	return all, nil
}

// Sign records signerID's signature. The actor must be the signer or
// staff. The signature flag, the snapshots and the completeness update
// commit together or not at all.
func (s *Service) Sign(ctx context.Context, actorID id.UserID, docID id.DocumentID, signerID id.UserID) (*SignResult, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "document.Sign", docID)
	var err error
	defer func() { endSpan(span, err) }()

	actor, signer, err := s.signingParties(ctx, actorID, signerID)
	if err != nil {
		return nil, err
	}

	var (
		result  *SignResult
		from    models.DocumentState
		flipped bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, sig, sigs, err := s.openSignature(txCtx, docID, signer.ID)
		if err != nil {
			return err
		}
		if !signer.SignatureOnFile {
			return dErrors.New(dErrors.CodeValidation, "signer has no stored signature")
		}

		now := requestcontext.Now(txCtx)
		sig.ApplySign(requestcontext.ClientIP(txCtx), now)
		if err := s.signatures.Update(txCtx, sig); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record signature")
		}
		for i := range sigs {
			if sigs[i].ID == sig.ID {
				sigs[i] = sig
			}
		}

		versions, err := s.versions.ListByDocument(txCtx, doc.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load versions")
		}
		var created []*models.Version
		if !models.HasOriginal(versions) {
			original, err := s.snapshot(txCtx, doc, models.VersionOriginal, 0, nil, nil)
			if err != nil {
				return err
			}
			created = append(created, original)
		}
		lines, err := s.signatureLines(txCtx, sigs)
		if err != nil {
			return err
		}
		signerRef := signer.ID
		signed, err := s.snapshot(txCtx, doc, models.VersionSigned, models.NextSignedNumber(versions), &signerRef, lines)
		if err != nil {
			return err
		}
		created = append(created, signed)

		from = doc.State
		flipped = doc.ApplyCompleteness(models.IsComplete(sigs), now)
		if err := s.documents.Update(txCtx, doc); err != nil {
			return wrapDocumentErr(err, "failed to update document")
		}
		result = &SignResult{Document: doc, Signature: sig, Versions: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, result.Document, from)
	device := deviceSummary(requestcontext.UserAgent(ctx))
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventDocumentSigned),
		ActorID:    actor.ID,
		DocumentID: docID,
		SubjectID:  signer.ID,
		Device:     device,
	})
	if flipped {
		s.emit(ctx, audit.Event{
			Action:     string(audit.EventDocumentFullySigned),
			ActorID:    actor.ID,
			DocumentID: docID,
			Device:     device,
		})
	}
	if s.metrics != nil {
		s.metrics.IncrementSigned(flipped)
		s.metrics.ObserveSign(start)
	}
	return result, nil
}

// Reject records signerID's refusal and moves the document to Rejected.
func (s *Service) Reject(ctx context.Context, actorID id.UserID, docID id.DocumentID, signerID id.UserID, comment string) (*models.Signature, error) {
	ctx, span := s.startSpan(ctx, "document.Reject", docID)
	var err error
	defer func() { endSpan(span, err) }()

	comment = strings.TrimSpace(comment)
	if len(comment) > maxRejectionComment {
		err = dErrors.New(dErrors.CodeValidation, "rejection comment is too long")
		return nil, err
	}
	actor, signer, err := s.signingParties(ctx, actorID, signerID)
	if err != nil {
		return nil, err
	}

	var (
		rejected *models.Signature
		doc      *models.Document
		from     models.DocumentState
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, sig, sigs, err := s.openSignature(txCtx, docID, signer.ID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		sig.ApplyReject(comment)
		if err := s.signatures.Update(txCtx, sig); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rejection")
		}
		from = d.State
		d.ApplyRejection(now)
		d.ApplyCompleteness(models.IsComplete(sigs), now)
		if err := s.documents.Update(txCtx, d); err != nil {
			return wrapDocumentErr(err, "failed to update document")
		}
		rejected, doc = sig, d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, doc, from)
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventSignatureRejected),
		ActorID:    actor.ID,
		DocumentID: docID,
		SubjectID:  signer.ID,
		Reason:     comment,
		Device:     deviceSummary(requestcontext.UserAgent(ctx)),
	})
	if s.metrics != nil {
		s.metrics.IncrementRejected()
	}
	return rejected, nil
}

// Reopen resets every signer record and returns a Rejected or Expired
// document to PendingSignatures. Only the owner may reopen.
func (s *Service) Reopen(ctx context.Context, actorID id.UserID, docID id.DocumentID, due *time.Time) (*models.Document, error) {
	ctx, span := s.startSpan(ctx, "document.Reopen", docID)
	var err error
	defer func() { endSpan(span, err) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if due != nil && !due.After(now) {
		err = dErrors.New(dErrors.CodeValidation, "signature due date must be in the future")
		return nil, err
	}

	var (
		doc  *models.Document
		from models.DocumentState
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		if err := d.CanReopen(actor.ID); err != nil {
			return err
		}
		sigs, err := s.signatures.ListByDocument(txCtx, d.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
		}
		for _, sig := range sigs {
			sig.Reset()
			if err := s.signatures.Update(txCtx, sig); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset signature")
			}
		}
		from = d.State
		d.ApplyReopen(due, now)
		if err := s.documents.Update(txCtx, d); err != nil {
			return wrapDocumentErr(err, "failed to update document")
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, doc, from)
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventSignaturesReopened),
		ActorID:    actor.ID,
		DocumentID: docID,
		Reason:     string(from),
	})
	return doc, nil
}

// RemoveSignatureRequest deletes an unsigned signer record. Only the owner
// may remove requests.
func (s *Service) RemoveSignatureRequest(ctx context.Context, actorID id.UserID, docID id.DocumentID, signerID id.UserID) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	var (
		doc     *models.Document
		from    models.DocumentState
		flipped bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.lockDocument(txCtx, docID)
		if err != nil {
			return err
		}
		if !d.IsOwner(actor.ID) {
			return dErrors.New(dErrors.CodeForbidden, "only the document owner can remove signature requests")
		}
		sig, err := s.findSignature(txCtx, d.ID, signerID)
		if err != nil {
			return err
		}
		if sig.Signed {
			return dErrors.New(dErrors.CodeInvalidState, "cannot remove a request that is already signed")
		}
		if err := s.signatures.Delete(txCtx, sig.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove signature request")
		}

		sigs, err := s.signatures.ListByDocument(txCtx, d.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
		}
		from = d.State
		flipped = d.ApplyCompleteness(models.IsComplete(sigs), requestcontext.Now(txCtx))
		if err := s.documents.Update(txCtx, d); err != nil {
			return wrapDocumentErr(err, "failed to update document")
		}
		doc = d
		return nil
	})
	if err != nil {
		return err
	}

	s.logTransition(ctx, doc, from)
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventSignatureRequestRemoved),
		ActorID:    actor.ID,
		DocumentID: docID,
		SubjectID:  signerID,
	})
	if flipped {
		s.emit(ctx, audit.Event{
			Action:     string(audit.EventDocumentFullySigned),
			ActorID:    actor.ID,
			DocumentID: docID,
			Reason:     "remaining signers complete",
		})
	}
	return nil
}

// ListSignatures returns the signer records of a document the actor can
// view.
func (s *Service) ListSignatures(ctx context.Context, actorID id.UserID, docID id.DocumentID) ([]*models.Signature, error) {
	if _, err := s.Get(ctx, actorID, docID); err != nil {
		return nil, err
	}
	sigs, err := s.signatures.ListByDocument(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list signatures")
	}
	return sigs, nil
}

// ListPendingForUser returns the actor's open signature requests. Overdue
// documents among them are expired first, so the list never offers a
// document that can no longer be signed.
func (s *Service) ListPendingForUser(ctx context.Context, actorID id.UserID) ([]PendingSignature, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	sigs, err := s.signatures.ListBySigner(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list signatures")
	}
	var open []*models.Signature
	var docIDs []id.DocumentID
	for _, sig := range sigs {
		if sig.IsOpen() {
			open = append(open, sig)
			docIDs = append(docIDs, sig.DocumentID)
		}
	}
	if len(open) == 0 {
		return []PendingSignature{}, nil
	}

	docs, err := s.documents.FindByIDs(ctx, docIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	if _, err := s.SweepExpired(ctx, docs); err != nil {
		return nil, err
	}

	byID := make(map[id.DocumentID]*models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]PendingSignature, 0, len(open))
	for _, sig := range open {
		doc, ok := byID[sig.DocumentID]
		if !ok || doc.State != models.StatePendingSignatures {
			continue
		}
		out = append(out, PendingSignature{Signature: sig, Document: doc})
	}
	return out, nil
}

// SweepExpired expires every overdue PendingSignatures document among
// candidates and updates the candidates in place. Expiring a document that
// another caller already expired is a no-op.
func (s *Service) SweepExpired(ctx context.Context, candidates []*models.Document) (int, error) {
	now := requestcontext.Now(ctx)
	expired := 0
	for i, cand := range candidates {
		if !cand.IsOverdue(now) {
			continue
		}
		var (
			doc     *models.Document
			changed bool
		)
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			d, err := s.lockDocument(txCtx, cand.ID)
			if err != nil {
				return err
			}
			doc = d
			if !d.IsOverdue(now) {
				return nil
			}
			changed = d.ApplyExpiry(now)
			if !changed {
				return nil
			}
			return wrapUpdate(s.documents.Update(txCtx, d))
		})
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return expired, err
		}
		candidates[i] = doc
		if !changed {
			continue
		}
		expired++
		s.logger.InfoContext(ctx, "document state changed",
			"document_id", doc.ID.String(),
			"from_state", string(models.StatePendingSignatures),
			"to_state", string(doc.State),
		)
		s.emit(ctx, audit.Event{
			Action:     string(audit.EventDocumentExpired),
			DocumentID: doc.ID,
			Reason:     "signature due date passed",
		})
	}
	if expired > 0 && s.metrics != nil {
		s.metrics.AddExpired(expired)
	}
	return expired, nil
}

// SweepOverdue expires every overdue document in the store. The periodic
// worker and the admin endpoint call it.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	start := time.Now()
	docs, err := s.documents.ListOverdue(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list overdue documents")
	}
	n, err := s.SweepExpired(ctx, docs)
	if s.metrics != nil {
		s.metrics.ObserveSweep(start)
	}
	return n, err
}

// signingParties loads the actor and the signer and checks the actor may
// act for the signer.
func (s *Service) signingParties(ctx context.Context, actorID, signerID id.UserID) (actor, signer *idmodels.User, err error) {
	actor, err = s.actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actorID == signerID {
		return actor, actor, nil
	}
	if !actor.IsStaff() {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "only the signer or staff can act on this signature")
	}
	signer, err = s.actor(ctx, signerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "signer not found")
		}
		return nil, nil, err
	}
	return actor, signer, nil
}

// openSignature locks the document and returns the signer's open record
// with all records of the document. It enforces the shared sign/reject
// preconditions.
func (s *Service) openSignature(ctx context.Context, docID id.DocumentID, signerID id.UserID) (*models.Document, *models.Signature, []*models.Signature, error) {
	doc, err := s.lockDocument(ctx, docID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !doc.RequiresSignature {
		return nil, nil, nil, dErrors.New(dErrors.CodeInvalidState, "document does not require signatures")
	}
	sig, err := s.findSignature(ctx, doc.ID, signerID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sig.CanAct(); err != nil {
		return nil, nil, nil, err
	}
	if doc.State != models.StatePendingSignatures {
		return nil, nil, nil, dErrors.New(dErrors.CodeInvalidState, "document is not awaiting signatures")
	}
	sigs, err := s.signatures.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
	}
	if err := models.CheckOrder(sigs, sig); err != nil {
		return nil, nil, nil, err
	}
	return doc, sig, sigs, nil
}

func (s *Service) findSignature(ctx context.Context, docID id.DocumentID, signerID id.UserID) (*models.Signature, error) {
	sig, err := s.signatures.FindByDocumentAndSigner(ctx, docID, signerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "signature request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signature")
	}
	return sig, nil
}

func wrapUpdate(err error) error {
	if err == nil {
		return nil
	}
	return wrapDocumentErr(err, "failed to update document")
}

// deviceSummary condenses a User-Agent into "Browser version on OS".
func deviceSummary(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	if name == "" {
		return ""
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := parsed.OS(); os != "" {
		summary += " on " + os
	}
	return summary
}
