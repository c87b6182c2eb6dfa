package models

import (
	"net/mail"
	"strings"
	"time"

	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
)

// Role is the global role of a principal.
type Role string

const (
	RoleClient Role = "client"
	RoleLawyer Role = "lawyer"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleClient, RoleLawyer, RoleStaff, RoleAdmin:
		return r, nil
	case "":
		return RoleClient, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown role: "+s)
}

// User is the principal the document engine authorizes. It is looked up by
// ID and never owned by a document.
type User struct {
	ID    id.UserID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  Role      `json:"role"`
	// LawyerFlag marks a lawyer regardless of role, e.g. a partner with an
	// admin role.
	LawyerFlag bool `json:"is_lawyer"`
	// SignatureOnFile is set once the user has stored an electronic
	// signature. Signing requires it.
	SignatureOnFile bool      `json:"has_signature"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsLawyer reports the global lawyer capability.
func (u *User) IsLawyer() bool {
	return u.Role == RoleLawyer || u.LawyerFlag
}

// IsStaff reports whether the user may sign on behalf of a signer.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}

func NewUser(userID id.UserID, email, name string, role Role, lawyer, signature bool, now time.Time) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid email address")
		}
	}
	if len(name) > 255 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name must be 255 characters or less")
	}
	return &User{
		ID:              userID,
		Email:           email,
		Name:            name,
		Role:            role,
		LawyerFlag:      lawyer,
		SignatureOnFile: signature,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
