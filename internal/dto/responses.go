package dto

import (
	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/service"
)

// AuthResponse represents the auth result with tokens
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// NewAuthResponse creates an AuthResponse from the service result
func NewAuthResponse(res *service.AuthResult) *AuthResponse {
	return &AuthResponse{
		User:         res.User,
		AccessToken:  res.TokenPair.AccessToken,
		RefreshToken: res.TokenPair.RefreshToken,
		ExpiresIn:    int64(res.TokenPair.ExpiresIn.Seconds()),
	}
}

// TransactionResponse represents a transaction with embedded milestones
type TransactionResponse struct {
	*models.Transaction
}

// ListResponse wraps a paginated collection
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
