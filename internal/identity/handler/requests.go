package handler

import (
	"strings"

	"lexflow/internal/identity/models"
	dErrors "lexflow/pkg/domain-errors"
	"lexflow/pkg/email"
)

type UpsertUserRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	IsLawyer     bool   `json:"is_lawyer"`
	HasSignature bool   `json:"has_signature"`

	role models.Role
}

func (r *UpsertUserRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Role = strings.TrimSpace(r.Role)
	if r.Name == "" {
		r.Name = email.DisplayName(r.Email)
	}
}

func (r *UpsertUserRequest) Validate() error {
	role, err := models.ParseRole(r.Role)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	r.role = role
	return nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}
