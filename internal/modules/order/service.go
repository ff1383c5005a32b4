package order

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/modules/marketplace"
)

// Service is the operator-facing order API on top of the store.
type Service interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, f Filter, page, pageSize int) (*Page, error)
	UpdateOrder(ctx context.Context, orderID string, p Patch) (*Order, error)
	DeleteOrder(ctx context.Context, orderID string) error

	// Ingest records an order seen by marketplace sync.
	Ingest(ctx context.Context, req IngestRequest) (*Order, error)
}

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation("order_id", "is required")
	}
	return s.repo.Get(ctx, orderID)
}

func (s *service) ListOrders(ctx context.Context, f Filter, page, pageSize int) (*Page, error) {
	page, pageSize = normalisePage(page, pageSize)
	orders, total, err := s.repo.List(ctx, f, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &Page{Orders: orders, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateOrder edits stored fields. system_shipped is owned by dispatch and
// cannot be patched here.
func (s *service) UpdateOrder(ctx context.Context, orderID string, p Patch) (*Order, error) {
	if p.SystemShipped != nil {
		return nil, apperr.Validation("system_shipped", "is set only by dispatch")
	}
	if p.Quantity != nil && *p.Quantity <= 0 {
		return nil, apperr.Validation("quantity", "must be positive")
	}
	if p.Status != nil && strings.TrimSpace(string(*p.Status)) == "" {
		return nil, apperr.Validation("status", "must not be empty")
	}
	o, err := s.repo.Update(ctx, orderID, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order updated", "order_id", orderID)
	return o, nil
}

func (s *service) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.repo.Delete(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("order deleted", "order_id", orderID)
	return nil
}

func (s *service) Ingest(ctx context.Context, req IngestRequest) (*Order, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, apperr.Validation("order_id", "is required")
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return nil, apperr.Validation("cookie_id", "is required")
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, apperr.Validation("amount", err.Error())
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	status := Status(marketplace.NormaliseStatus(req.Status))
	if status == "" {
		status = StatusProcessing
	}

	return s.repo.Upsert(ctx, &Order{
		OrderID:         req.OrderID,
		AccountID:       req.AccountID,
		ItemID:          req.ItemID,
		ItemTitle:       req.ItemTitle,
		BuyerID:         req.BuyerID,
		SpecName:        req.SpecName,
		SpecValue:       req.SpecValue,
		Quantity:        qty,
		Amount:          amount,
		Status:          status,
		IsBargain:       req.IsBargain,
		ReceiverName:    req.ReceiverName,
		ReceiverPhone:   req.ReceiverPhone,
		ReceiverAddress: req.ReceiverAddress,
	})
}
