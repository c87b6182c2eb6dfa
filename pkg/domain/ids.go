// Package domain holds typed identifiers shared across bounded contexts.
//
// Each identifier wraps a uuid.UUID so a DocumentID can never be passed where a
// UserID is expected. Parsing happens once at the trust boundary (handlers);
// everything behind it works with typed values.
package domain

import (
	"github.com/google/uuid"

	dErrors "lexflow/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	DocumentID     uuid.UUID
	SignatureID    uuid.UUID
	VersionID      uuid.UUID
	RelationshipID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id SignatureID) String() string    { return uuid.UUID(id).String() }
func (id VersionID) String() string      { return uuid.UUID(id).String() }
func (id RelationshipID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SignatureID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VersionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RelationshipID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON payloads.
func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id SignatureID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id VersionID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id RelationshipID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	parsed, err := ParseDocumentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SignatureID) UnmarshalText(b []byte) error {
	parsed, err := ParseSignatureID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *VersionID) UnmarshalText(b []byte) error {
	parsed, err := ParseVersionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RelationshipID) UnmarshalText(b []byte) error {
	parsed, err := ParseRelationshipID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewSignatureID() SignatureID       { return SignatureID(uuid.New()) }
func NewVersionID() VersionID           { return VersionID(uuid.New()) }
func NewRelationshipID() RelationshipID { return RelationshipID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document_id")
	return DocumentID(u), err
}

func ParseSignatureID(s string) (SignatureID, error) {
	u, err := parseUUID(s, "signature_id")
	return SignatureID(u), err
}

func ParseVersionID(s string) (VersionID, error) {
	u, err := parseUUID(s, "version_id")
	return VersionID(u), err
}

func ParseRelationshipID(s string) (RelationshipID, error) {
	u, err := parseUUID(s, "relationship_id")
	return RelationshipID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
