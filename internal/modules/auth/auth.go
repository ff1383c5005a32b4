package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredentials covers both an unknown username and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service defines the interface for authentication-related business logic.
type Service interface {
	Login(ctx context.Context, username, password string) (*Session, error)

	// Verify checks a raw bearer token against the signing secret.
	Verify(ctx context.Context, token string) (*Session, error)
}

// Session is what a successful login or verification yields.
type Session struct {
	Token    string `json:"token,omitempty"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
