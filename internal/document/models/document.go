package models

import (
	"strings"
	"time"

	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
)

// DocumentState is the lifecycle state of a document.
type DocumentState string

const (
	StateDraft             DocumentState = "draft"
	StateProgress          DocumentState = "progress"
	StatePublished         DocumentState = "published"
	StateCompleted         DocumentState = "completed"
	StatePendingSignatures DocumentState = "pending_signatures"
	StateFullySigned       DocumentState = "fully_signed"
	StateRejected          DocumentState = "rejected"
	StateExpired           DocumentState = "expired"
)

var knownStates = map[DocumentState]bool{
	StateDraft:             true,
	StateProgress:          true,
	StatePublished:         true,
	StateCompleted:         true,
	StatePendingSignatures: true,
	StateFullySigned:       true,
	StateRejected:          true,
	StateExpired:           true,
}

// ParseDocumentState validates a state name from input.
func ParseDocumentState(s string) (DocumentState, error) {
	st := DocumentState(strings.ToLower(strings.TrimSpace(s)))
	if !knownStates[st] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown document state: "+s)
	}
	return st, nil
}

// IsSignatureState reports whether the state belongs to the signing
// lifecycle. Only documents that require a signature may be in one.
func (s DocumentState) IsSignatureState() bool {
	switch s {
	case StatePendingSignatures, StateFullySigned, StateRejected, StateExpired:
		return true
	}
	return false
}

// LockedForSignatures reports whether relationships touching a document in
// this state are frozen.
func (s DocumentState) LockedForSignatures() bool {
	return s == StatePendingSignatures || s == StateFullySigned
}

// Document is the aggregate root. Signatures, grants, versions and
// relationships are owned by it and deleted with it.
//
// Invariants:
//   - Title is non-empty and at most 255 characters
//   - State is a signature state only when RequiresSignature is set
//   - FullySigned equals the completeness predicate over its signer records
type Document struct {
	ID                id.DocumentID     `json:"id"`
	Title             string            `json:"title"`
	Content           string            `json:"content"`
	Variables         map[string]string `json:"variables,omitempty"`
	State             DocumentState     `json:"state"`
	OwnerID           id.UserID         `json:"created_by"`
	AssignedTo        *id.UserID        `json:"assigned_to,omitempty"`
	RequiresSignature bool              `json:"requires_signature"`
	FullySigned       bool              `json:"fully_signed"`
	IsPublic          bool              `json:"is_public"`
	SignatureDueDate  *time.Time        `json:"signature_due_date,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

const maxTitleLength = 255

// NewDocument builds a draft owned by owner.
func NewDocument(docID id.DocumentID, owner id.UserID, title, content string, now time.Time) (*Document, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	return &Document{
		ID:        docID,
		Title:     title,
		Content:   content,
		Variables: map[string]string{},
		State:     StateDraft,
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func validateTitle(title string) error {
	if title == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "document title cannot be empty")
	}
	if len(title) > maxTitleLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "document title must be 255 characters or less")
	}
	return nil
}

func (d *Document) IsOwner(userID id.UserID) bool {
	return d.OwnerID == userID
}

func (d *Document) IsAssignedTo(userID id.UserID) bool {
	return d.AssignedTo != nil && *d.AssignedTo == userID
}

// IsTemplate reports whether a published document is open for reuse by
// anyone: published with nobody assigned.
func (d *Document) IsTemplate() bool {
	return d.State == StatePublished && d.AssignedTo == nil
}

// IsOverdue reports whether a pending document has passed its due date.
func (d *Document) IsOverdue(now time.Time) bool {
	return d.State == StatePendingSignatures && d.SignatureDueDate != nil && now.After(*d.SignatureDueDate)
}

// CanEditState checks a state change requested through a plain update.
// Signature states are entered only through the signing operations.
func (d *Document) CanEditState(to DocumentState) error {
	if to == d.State {
		return nil
	}
	if to.IsSignatureState() {
		return dErrors.New(dErrors.CodeInvalidState, "signature states are managed by the signing workflow")
	}
	if d.State.IsSignatureState() {
		return dErrors.New(dErrors.CodeInvalidState, "document is in the signing workflow")
	}
	return nil
}

// CanEditContent rejects content edits on a fully signed document.
func (d *Document) CanEditContent() error {
	if d.State == StateFullySigned {
		return dErrors.New(dErrors.CodeInvalidState, "fully signed documents cannot be edited")
	}
	return nil
}

// CanRequestSignatures checks the document may (re-)enter the pending
// state.
func (d *Document) CanRequestSignatures() error {
	if d.FullySigned || d.State == StateFullySigned {
		return dErrors.New(dErrors.CodeInvalidState, "document is already fully signed")
	}
	if d.State == StateRejected || d.State == StateExpired {
		return dErrors.New(dErrors.CodeInvalidState, "signing was rejected or expired, use reopen")
	}
	return nil
}

// ApplySignatureRequest moves the document to pending.
func (d *Document) ApplySignatureRequest(due *time.Time, now time.Time) {
	d.RequiresSignature = true
	d.State = StatePendingSignatures
	if due != nil {
		d.SignatureDueDate = due
	}
	d.UpdatedAt = now
}

// CanReopen checks reopening after a rejection or expiry.
func (d *Document) CanReopen(actor id.UserID) error {
	if !d.IsOwner(actor) {
		return dErrors.New(dErrors.CodeForbidden, "only the document owner can reopen signatures")
	}
	if !d.RequiresSignature {
		return dErrors.New(dErrors.CodeInvalidState, "document does not require signatures")
	}
	if d.State != StateRejected && d.State != StateExpired {
		return dErrors.New(dErrors.CodeInvalidState, "only rejected or expired documents can be reopened")
	}
	return nil
}

// ApplyReopen returns the document to pending. A due date already in the
// past is dropped unless a new one is supplied.
func (d *Document) ApplyReopen(due *time.Time, now time.Time) {
	d.State = StatePendingSignatures
	d.FullySigned = false
	switch {
	case due != nil:
		d.SignatureDueDate = due
	case d.SignatureDueDate != nil && !now.Before(*d.SignatureDueDate):
		d.SignatureDueDate = nil
	}
	d.UpdatedAt = now
}

// ApplyCompleteness stores the recomputed fully-signed flag and reports
// whether it flipped from false to true, in which case the state becomes
// FullySigned.
func (d *Document) ApplyCompleteness(complete bool, now time.Time) bool {
	flipped := complete && !d.FullySigned
	d.FullySigned = complete
	if flipped {
		d.State = StateFullySigned
	}
	d.UpdatedAt = now
	return flipped
}

// ApplyExpiry transitions an overdue pending document. It reports false and
// changes nothing when the document is not pending.
func (d *Document) ApplyExpiry(now time.Time) bool {
	if d.State != StatePendingSignatures {
		return false
	}
	d.State = StateExpired
	d.UpdatedAt = now
	return true
}

// ApplyRejection moves the document to Rejected.
func (d *Document) ApplyRejection(now time.Time) {
	d.State = StateRejected
	d.UpdatedAt = now
}

// Patch is a partial document update. Nil fields are left untouched.
type Patch struct {
	Title             *string
	Content           *string
	Variables         map[string]string
	State             *DocumentState
	IsPublic          *bool
	AssignedTo        *id.UserID
	ClearAssignee     bool
	RequiresSignature *bool
	SignatureDueDate  *time.Time
}

// ApplyPatch validates and applies p. It reports whether the state moved
// from Completed back to Progress.
func (d *Document) ApplyPatch(p Patch, now time.Time) (reopenedForEdit bool, err error) {
	if p.Title != nil || p.Content != nil || p.Variables != nil {
		if err := d.CanEditContent(); err != nil {
			return false, err
		}
	}
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return false, dErrors.New(dErrors.CodeValidation, err.Error())
		}
	}
	if p.State != nil {
		if err := d.CanEditState(*p.State); err != nil {
			return false, err
		}
	}
	if p.RequiresSignature != nil && !*p.RequiresSignature && d.State.IsSignatureState() {
		return false, dErrors.New(dErrors.CodeInvalidState, "cannot drop the signature requirement during signing")
	}

	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.Variables != nil {
		d.Variables = p.Variables
	}
	if p.State != nil {
		reopenedForEdit = d.State == StateCompleted && *p.State == StateProgress
		d.State = *p.State
	}
	if p.IsPublic != nil {
		d.IsPublic = *p.IsPublic
	}
	if p.ClearAssignee {
		d.AssignedTo = nil
	} else if p.AssignedTo != nil {
		assignee := *p.AssignedTo
		d.AssignedTo = &assignee
	}
	if p.RequiresSignature != nil {
		d.RequiresSignature = *p.RequiresSignature
	}
	if p.SignatureDueDate != nil {
		due := *p.SignatureDueDate
		d.SignatureDueDate = &due
	}
	d.UpdatedAt = now
	return reopenedForEdit, nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	if d.Variables != nil {
		c.Variables = make(map[string]string, len(d.Variables))
		for k, v := range d.Variables {
			c.Variables[k] = v
		}
	}
	if d.AssignedTo != nil {
		a := *d.AssignedTo
		c.AssignedTo = &a
	}
	if d.SignatureDueDate != nil {
		t := *d.SignatureDueDate
		c.SignatureDueDate = &t
	}
	return &c
}
