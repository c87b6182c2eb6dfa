package handler

import (
	"strings"
	"time"

	"lexflow/internal/document/models"
	"lexflow/internal/document/service"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
)

type CreateDocumentRequest struct {
	Title             string            `json:"title"`
	Content           string            `json:"content"`
	Variables         map[string]string `json:"variables"`
	IsPublic          bool              `json:"is_public"`
	AssignedTo        string            `json:"assigned_to"`
	RequiresSignature bool              `json:"requires_signature"`

	assignee *id.UserID
}

func (r *CreateDocumentRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.AssignedTo = strings.TrimSpace(r.AssignedTo)
}

func (r *CreateDocumentRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.AssignedTo != "" {
		userID, err := id.ParseUserID(r.AssignedTo)
		if err != nil {
			return err
		}
		r.assignee = &userID
	}
	return nil
}

func (r *CreateDocumentRequest) command() service.CreateCommand {
	return service.CreateCommand{
		Title:             r.Title,
		Content:           r.Content,
		Variables:         r.Variables,
		IsPublic:          r.IsPublic,
		AssignedTo:        r.assignee,
		RequiresSignature: r.RequiresSignature,
	}
}

// UpdateDocumentRequest is a partial update. An empty assigned_to clears
// the assignee.
type UpdateDocumentRequest struct {
	Title             *string           `json:"title"`
	Content           *string           `json:"content"`
	Variables         map[string]string `json:"variables"`
	State             *string           `json:"state"`
	IsPublic          *bool             `json:"is_public"`
	AssignedTo        *string           `json:"assigned_to"`
	RequiresSignature *bool             `json:"requires_signature"`
	SignatureDueDate  *time.Time        `json:"signature_due_date"`

	patch models.Patch
}

func (r *UpdateDocumentRequest) Normalize() {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	if r.State != nil {
		st := strings.ToLower(strings.TrimSpace(*r.State))
		r.State = &st
	}
}

func (r *UpdateDocumentRequest) Validate() error {
	r.patch = models.Patch{
		Title:             r.Title,
		Content:           r.Content,
		Variables:         r.Variables,
		IsPublic:          r.IsPublic,
		RequiresSignature: r.RequiresSignature,
		SignatureDueDate:  r.SignatureDueDate,
	}
	if r.State != nil {
		st, err := models.ParseDocumentState(*r.State)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, err.Error())
		}
		r.patch.State = &st
	}
	if r.AssignedTo != nil {
		raw := strings.TrimSpace(*r.AssignedTo)
		if raw == "" {
			r.patch.ClearAssignee = true
		} else {
			userID, err := id.ParseUserID(raw)
			if err != nil {
				return err
			}
			r.patch.AssignedTo = &userID
		}
	}
	return nil
}

type GrantRequest struct {
	User string `json:"user"`

	userID id.UserID
}

func (r *GrantRequest) Normalize() { r.User = strings.TrimSpace(r.User) }

func (r *GrantRequest) Validate() error {
	if r.User == "" {
		return dErrors.New(dErrors.CodeValidation, "user is required")
	}
	userID, err := id.ParseUserID(r.User)
	if err != nil {
		return err
	}
	r.userID = userID
	return nil
}

type SignerEntry struct {
	Signer   string `json:"signer"`
	Position int    `json:"signature_position"`
}

type RequestSignaturesRequest struct {
	Signers          []SignerEntry `json:"signers"`
	SignatureDueDate *time.Time    `json:"signature_due_date"`

	signers []models.SignerRequest
}

func (r *RequestSignaturesRequest) Validate() error {
	if len(r.Signers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one signer is required")
	}
	r.signers = make([]models.SignerRequest, 0, len(r.Signers))
	for _, e := range r.Signers {
		userID, err := id.ParseUserID(strings.TrimSpace(e.Signer))
		if err != nil {
			return err
		}
		if e.Position < 0 {
			return dErrors.New(dErrors.CodeValidation, "signature_position cannot be negative")
		}
		r.signers = append(r.signers, models.SignerRequest{SignerID: userID, Position: e.Position})
	}
	return nil
}

// SignRequest names the signer. An empty signer means the caller signs for
// themselves.
type SignRequest struct {
	Signer string `json:"signer"`

	signerID *id.UserID
}

func (r *SignRequest) Normalize() { r.Signer = strings.TrimSpace(r.Signer) }

func (r *SignRequest) Validate() error {
	if r.Signer == "" {
		return nil
	}
	userID, err := id.ParseUserID(r.Signer)
	if err != nil {
		return err
	}
	r.signerID = &userID
	return nil
}

func (r *SignRequest) signerOr(actor id.UserID) id.UserID {
	if r.signerID != nil {
		return *r.signerID
	}
	return actor
}

type RejectRequest struct {
	SignRequest
	Comment string `json:"comment"`
}

func (r *RejectRequest) Normalize() {
	r.SignRequest.Normalize()
	r.Comment = strings.TrimSpace(r.Comment)
}

type ReopenRequest struct {
	SignatureDueDate *time.Time `json:"signature_due_date"`
}

type CreateRelationshipRequest struct {
	SourceDocument         string `json:"source_document"`
	TargetDocument         string `json:"target_document"`
	AllowPendingSignatures bool   `json:"allow_pending_signatures"`

	source id.DocumentID
	target id.DocumentID
}

func (r *CreateRelationshipRequest) Normalize() {
	r.SourceDocument = strings.TrimSpace(r.SourceDocument)
	r.TargetDocument = strings.TrimSpace(r.TargetDocument)
}

func (r *CreateRelationshipRequest) Validate() error {
	if r.SourceDocument == "" || r.TargetDocument == "" {
		return dErrors.New(dErrors.CodeValidation, "source_document and target_document are required")
	}
	var err error
	if r.source, err = id.ParseDocumentID(r.SourceDocument); err != nil {
		return err
	}
	if r.target, err = id.ParseDocumentID(r.TargetDocument); err != nil {
		return err
	}
	return nil
}

type PermissionResponse struct {
	Document   string `json:"document"`
	Permission string `json:"permission"`
}

type SweepResponse struct {
	Expired int `json:"expired"`
}
