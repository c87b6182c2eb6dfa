package models

import (
	"time"

	id "lexflow/pkg/domain"
)

// GrantKind distinguishes the two explicit permission collections.
type GrantKind string

const (
	GrantVisibility GrantKind = "visibility"
	GrantUsability  GrantKind = "usability"
)

func (k GrantKind) IsValid() bool {
	return k == GrantVisibility || k == GrantUsability
}

// Grant is an explicit permission for one user on one document.
type Grant struct {
	Kind       GrantKind     `json:"-"`
	DocumentID id.DocumentID `json:"document"`
	UserID     id.UserID     `json:"user"`
	GrantedBy  id.UserID     `json:"granted_by"`
	GrantedAt  time.Time     `json:"granted_at"`
}
