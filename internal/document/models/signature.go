package models

import (
	"time"

	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
)

// Signature is one signer's record on a document. There is at most one per
// (document, signer).
type Signature struct {
	ID               id.SignatureID `json:"id"`
	DocumentID       id.DocumentID  `json:"document"`
	SignerID         id.UserID      `json:"signer"`
	Signed           bool           `json:"signed"`
	SignedAt         *time.Time     `json:"signed_at,omitempty"`
	IPAddress        string         `json:"ip_address,omitempty"`
	Rejected         bool           `json:"rejected"`
	RejectionComment string         `json:"rejection_comment,omitempty"`
	// Position orders signing; 0 means unordered.
	Position  int       `json:"signature_position"`
	CreatedAt time.Time `json:"created_at"`
}

// SignerRequest names a signer and an optional position.
type SignerRequest struct {
	SignerID id.UserID
	Position int
}

func NewSignature(docID id.DocumentID, req SignerRequest, now time.Time) (*Signature, error) {
	if req.SignerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "signer is required")
	}
	if req.Position < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "signature position cannot be negative")
	}
	return &Signature{
		ID:         id.NewSignatureID(),
		DocumentID: docID,
		SignerID:   req.SignerID,
		Position:   req.Position,
		CreatedAt:  now,
	}, nil
}

// IsOpen reports whether the signer still has to act.
func (s *Signature) IsOpen() bool {
	return !s.Signed && !s.Rejected
}

// CanAct checks that the record accepts a sign or reject.
func (s *Signature) CanAct() error {
	if s.Signed {
		return dErrors.New(dErrors.CodeInvalidState, "signature already recorded")
	}
	if s.Rejected {
		return dErrors.New(dErrors.CodeInvalidState, "signature already rejected")
	}
	return nil
}

func (s *Signature) ApplySign(ip string, now time.Time) {
	t := now
	s.Signed = true
	s.SignedAt = &t
	s.IPAddress = ip
}

func (s *Signature) ApplyReject(comment string) {
	s.Rejected = true
	s.RejectionComment = comment
}

// Reset clears the outcome so the signer can act again.
func (s *Signature) Reset() {
	s.Signed = false
	s.SignedAt = nil
	s.IPAddress = ""
	s.Rejected = false
	s.RejectionComment = ""
}

func (s *Signature) Clone() *Signature {
	c := *s
	if s.SignedAt != nil {
		t := *s.SignedAt
		c.SignedAt = &t
	}
	return &c
}

// IsComplete is the fully-signed predicate: at least one signer and every
// signer has signed.
func IsComplete(sigs []*Signature) bool {
	if len(sigs) == 0 {
		return false
	}
	for _, s := range sigs {
		if !s.Signed {
			return false
		}
	}
	return true
}

// CheckOrder enforces positional signing: a signer at position p > 0 waits
// until every signer at a lower positive position has signed.
func CheckOrder(sigs []*Signature, target *Signature) error {
	if target.Position == 0 {
		return nil
	}
	for _, s := range sigs {
		if s.ID == target.ID || s.Position == 0 {
			continue
		}
		if s.Position < target.Position && !s.Signed {
			return dErrors.New(dErrors.CodeInvalidState, "an earlier signer has not signed yet")
		}
	}
	return nil
}
