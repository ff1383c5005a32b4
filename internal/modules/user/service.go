package user

import "context"

// Service defines the interface for user-related business logic.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterRequest) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)

	// EnsureAdmin creates the bootstrap administrator when no operator exists
	// yet. It reports whether a user was created.
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
}
