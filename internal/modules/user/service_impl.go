package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

const minPasswordLen = 6

type service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new user service.
func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username", "is required")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Validation("password", "must be at least 6 characters")
	}
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return nil, apperr.Validation("username", "already taken")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsAdmin:      req.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("operator registered", "user_id", user.ID, "username", username)
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.RegisterUser(ctx, RegisterRequest{Username: username, Password: password, IsAdmin: true}); err != nil {
		return false, err
	}
	return true, nil
}
