package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/modules/user"
	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

type service struct {
	userRepo user.Repository
	secret   []byte
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates a new auth service signing HS256 tokens with secret.
func NewService(userRepo user.Repository, secret []byte, ttl time.Duration, logger *slog.Logger) Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{userRepo: userRepo, secret: secret, ttl: ttl, logger: logger}
}

func (s *service) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, apperr.Validation("credentials", "username and password are required")
	}
	u, err := s.userRepo.GetUserByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("login rejected", "username", username, "reason", "unknown user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login rejected", "username", username, "reason", "bad password")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := &httpx.Claims{
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operator logged in", "user_id", u.ID, "username", u.Username)
	return &Session{Token: tokenString, UserID: u.ID.String(), Username: u.Username, IsAdmin: u.IsAdmin}, nil
}

func (s *service) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := httpx.ParseToken(s.secret, token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	// the operator may have been removed since the token was issued
	u, err := s.userRepo.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &Session{UserID: u.ID.String(), Username: u.Username, IsAdmin: u.IsAdmin}, nil
}
