package inventory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

// Service defines card management.
type Service interface {
	CreateCard(ctx context.Context, req CardRequest) (*Card, error)
	GetCard(ctx context.Context, id int64) (*Card, error)
	ListCards(ctx context.Context) ([]*Card, error)
	UpdateCard(ctx context.Context, id int64, req CardRequest) (*Card, error)
	DeleteCard(ctx context.Context, id int64) error
}

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) CreateCard(ctx context.Context, req CardRequest) (*Card, error) {
	c, err := buildCard(req)
	if err != nil {
		return nil, err
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts

	var stock []string
	if req.DataContent != nil {
		stock = SplitStock(*req.DataContent)
	}
	if err := s.repo.CreateCard(ctx, c, stock); err != nil {
		return nil, err
	}
	s.logger.Info("card created", "card_id", c.ID, "type", c.Type, "stock", len(stock))
	return c, nil
}

func (s *service) GetCard(ctx context.Context, id int64) (*Card, error) {
	return s.repo.GetCard(ctx, id)
}

func (s *service) ListCards(ctx context.Context) ([]*Card, error) {
	return s.repo.ListCards(ctx)
}

func (s *service) UpdateCard(ctx context.Context, id int64, req CardRequest) (*Card, error) {
	existing, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := buildCard(req)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = now()

	var stock []string
	replace := req.DataContent != nil
	if replace {
		stock = SplitStock(*req.DataContent)
	}
	if err := s.repo.UpdateCard(ctx, c, stock, replace); err != nil {
		return nil, err
	}
	s.logger.Info("card updated", "card_id", id, "stock_replaced", replace)
	return s.repo.GetCard(ctx, id)
}

func (s *service) DeleteCard(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.logger.Info("card deleted", "card_id", id)
	return nil
}

func buildCard(req CardRequest) (*Card, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	typ := CardType(strings.ToLower(strings.TrimSpace(req.Type)))
	if !typ.Valid() {
		return nil, apperr.Validation("type", "must be one of text, data, api, image")
	}
	if req.DelaySeconds < 0 {
		return nil, apperr.Validation("delay_seconds", "must not be negative")
	}
	if req.IsMultiSpec && (strings.TrimSpace(req.SpecName) == "" || strings.TrimSpace(req.SpecValue) == "") {
		return nil, apperr.Validation("spec_value", "multi-spec cards need spec_name and spec_value")
	}

	switch typ {
	case CardText:
		if strings.TrimSpace(req.TextContent) == "" {
			return nil, apperr.Validation("text_content", "is required for text cards")
		}
	case CardAPI:
		if req.APIConfig == nil || strings.TrimSpace(req.APIConfig.URL) == "" {
			return nil, apperr.Validation("api_config", "url is required for api cards")
		}
		if req.APIConfig.Timeout < 0 {
			return nil, apperr.Validation("api_config", "timeout must not be negative")
		}
	case CardImage:
		if strings.TrimSpace(req.ImageURL) == "" {
			return nil, apperr.Validation("image_url", "is required for image cards")
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	c := &Card{
		Name:         name,
		Type:         typ,
		Description:  req.Description,
		Enabled:      enabled,
		ItemID:       strings.TrimSpace(req.ItemID),
		DelaySeconds: req.DelaySeconds,
		IsMultiSpec:  req.IsMultiSpec,
	}
	if req.IsMultiSpec {
		c.SpecName = strings.TrimSpace(req.SpecName)
		c.SpecValue = strings.TrimSpace(req.SpecValue)
	}
	switch typ {
	case CardText:
		c.TextContent = req.TextContent
	case CardAPI:
		cfg := *req.APIConfig
		cfg.Method = strings.ToUpper(cfg.Method)
		if cfg.Method == "" {
			cfg.Method = "GET"
		}
		c.APIConfig = &cfg
	case CardImage:
		c.ImageURL = strings.TrimSpace(req.ImageURL)
	}
	return c, nil
}
