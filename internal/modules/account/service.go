package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/modules/marketplace"
)

// Service defines account management and session resolution.
type Service interface {
	CreateAccount(ctx context.Context, req CreateRequest) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	UpdateAccount(ctx context.Context, id string, req UpdateRequest) (*Account, error)
	DeleteAccount(ctx context.Context, id string) error

	GetAISettings(ctx context.Context, id string) (*AISettings, error)
	SaveAISettings(ctx context.Context, id string, s AISettings) (*AISettings, error)

	// Session returns the marketplace credential for an enabled account.
	Session(ctx context.Context, id string) (marketplace.Session, error)
}

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) CreateAccount(ctx context.Context, req CreateRequest) (*Account, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, apperr.Validation("id", "is required")
	}
	cookie := req.Cookie
	if cookie == "" {
		cookie = req.Value
	}
	if strings.TrimSpace(cookie) == "" {
		return nil, apperr.Validation("cookie", "is required")
	}
	if req.PauseDuration < 0 {
		return nil, apperr.Validation("pause_duration", "must not be negative")
	}
	if _, err := s.repo.Get(ctx, id); err == nil {
		return nil, apperr.Validation("id", fmt.Sprintf("account %s already exists", id))
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	ts := now()
	a := &Account{
		ID:            id,
		Cookie:        cookie,
		Enabled:       enabled,
		AutoConfirm:   req.AutoConfirm,
		Remark:        req.Remark,
		PauseDuration: req.PauseDuration,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", id)
	return a, nil
}

func (s *service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

func (s *service) UpdateAccount(ctx context.Context, id string, req UpdateRequest) (*Account, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Cookie != nil {
		if strings.TrimSpace(*req.Cookie) == "" {
			return nil, apperr.Validation("cookie", "must not be empty")
		}
		a.Cookie = *req.Cookie
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.AutoConfirm != nil {
		a.AutoConfirm = *req.AutoConfirm
	}
	if req.Remark != nil {
		a.Remark = *req.Remark
	}
	if req.PauseDuration != nil {
		if *req.PauseDuration < 0 {
			return nil, apperr.Validation("pause_duration", "must not be negative")
		}
		a.PauseDuration = *req.PauseDuration
	}
	a.UpdatedAt = now()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) DeleteAccount(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", "account_id", id)
	return nil
}

// GetAISettings returns the stored record, or the zero record for accounts
// that never saved one.
func (s *service) GetAISettings(ctx context.Context, id string) (*AISettings, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	settings, err := s.repo.GetAISettings(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return &AISettings{AccountID: id}, nil
	}
	return settings, err
}

func (s *service) SaveAISettings(ctx context.Context, id string, in AISettings) (*AISettings, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if in.MaxDiscountPercent < 0 || in.MaxDiscountPercent > 100 {
		return nil, apperr.Validation("max_discount_percent", "must be between 0 and 100")
	}
	if in.MaxDiscountAmount.IsNegative() {
		return nil, apperr.Validation("max_discount_amount", "must not be negative")
	}
	if in.MaxBargainRounds < 0 {
		return nil, apperr.Validation("max_bargain_rounds", "must not be negative")
	}
	in.AccountID = id
	in.UpdatedAt = now()
	if err := s.repo.SaveAISettings(ctx, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *service) Session(ctx context.Context, id string) (marketplace.Session, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return marketplace.Session{}, err
	}
	if !a.Enabled {
		return marketplace.Session{}, fmt.Errorf("account %s: %w", id, apperr.ErrAccountOff)
	}
	return marketplace.Session{AccountID: a.ID, Cookie: a.Cookie}, nil
}
