// Package fulfillment delivers digital content for orders and records each
// attempt in the shipment log.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/modules/inventory"
	"github.com/xyops/xianyu-backend/internal/modules/marketplace"
	"github.com/xyops/xianyu-backend/internal/modules/order"
)

// SessionSource resolves the marketplace credential of an account.
type SessionSource interface {
	Session(ctx context.Context, accountID string) (marketplace.Session, error)
}

// ContentMatcher picks inventory content for an order. *inventory.Matcher
// satisfies it.
type ContentMatcher interface {
	Match(ctx context.Context, req inventory.MatchRequest) (*inventory.Resolved, error)
	Release(ctx context.Context, orderID string, res *inventory.Resolved) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Service dispatches content to orders.
type Service interface {
	// ShipOrders validates the request as a whole, then handles every order
	// independently. Only a validation failure is returned as an error.
	ShipOrders(ctx context.Context, req ShipRequest) (*ShipmentResult, error)

	ListShipments(ctx context.Context, orderID string) ([]*Shipment, error)
}

type Options struct {
	Concurrency int
	CallTimeout time.Duration
	Sleep       SleepFunc
}

type service struct {
	orders    order.Repository
	shipments Repository
	sessions  SessionSource
	matcher   ContentMatcher
	market    marketplace.Marketplace
	opts      Options
	logger    *slog.Logger

	locks   orderLocks
	tracer  trace.Tracer
	counter metric.Int64Counter
}

func NewService(
	orders order.Repository,
	shipments Repository,
	sessions SessionSource,
	matcher ContentMatcher,
	market marketplace.Marketplace,
	opts Options,
	logger *slog.Logger,
) Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 20 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	counter, err := otel.Meter("fulfillment").Int64Counter("fulfillment.orders",
		metric.WithDescription("orders dispatched, by outcome"))
	if err != nil {
		logger.Warn("fulfillment counter unavailable", "error", err)
	}
	return &service{
		orders:    orders,
		shipments: shipments,
		sessions:  sessions,
		matcher:   matcher,
		market:    market,
		opts:      opts,
		logger:    logger,
		locks:     orderLocks{held: map[string]*lockEntry{}},
		tracer:    otel.Tracer("fulfillment"),
		counter:   counter,
	}
}

func (s *service) ShipOrders(ctx context.Context, req ShipRequest) (*ShipmentResult, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "fulfillment.ship",
		trace.WithAttributes(
			attribute.String("ship.mode", string(req.Mode)),
			attribute.Int("ship.size", len(req.OrderIDs)),
		))
	defer span.End()

	results := make([]ItemResult, len(req.OrderIDs))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, id := range req.OrderIDs {
		i, id := i, id
		g.Go(func() error {
			results[i] = s.shipOne(ctx, id, req)
			return nil
		})
	}
	g.Wait()

	res := &ShipmentResult{Total: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			res.SuccessCount++
		} else {
			res.FailedCount++
		}
	}
	span.SetAttributes(
		attribute.Int("ship.success", res.SuccessCount),
		attribute.Int("ship.failed", res.FailedCount),
	)
	s.logger.Info("ship request finished", "mode", req.Mode, "total", res.Total,
		"success", res.SuccessCount, "failed", res.FailedCount)
	return res, nil
}

func (s *service) ListShipments(ctx context.Context, orderID string) ([]*Shipment, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.shipments.ListByOrder(ctx, orderID)
}

func validate(req *ShipRequest) error {
	if len(req.OrderIDs) == 0 {
		return apperr.Validation("order_ids", "must not be empty")
	}
	for _, id := range req.OrderIDs {
		if strings.TrimSpace(id) == "" {
			return apperr.Validation("order_ids", "must not contain empty ids")
		}
	}
	if req.Mode == "" {
		req.Mode = ModeAutoMatch
	}
	if !req.Mode.Valid() {
		return apperr.Validation("ship_mode", fmt.Sprintf("unsupported mode %q", req.Mode))
	}
	if req.Mode == ModeCustom && strings.TrimSpace(req.CustomContent) == "" {
		return apperr.Validation("custom_content", "is required for custom mode")
	}
	return nil
}

// shipOne runs the per-order flow. Attempts on the same order are serialised
// so a duplicate id never sends content twice.
func (s *service) shipOne(ctx context.Context, orderID string, req ShipRequest) ItemResult {
	ctx, span := s.tracer.Start(ctx, "fulfillment.order",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	unlock := s.locks.lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return s.finish(ctx, span, orderID, false, MsgNotFound)
		}
		return s.finish(ctx, span, orderID, false, err.Error())
	}
	if o.SystemShipped {
		return s.finish(ctx, span, orderID, false, MsgAlreadyShipped)
	}

	sess, err := s.sessions.Session(ctx, o.AccountID)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.fail(ctx, span, o, req.Mode, nil, MsgNoAccount)
	}
	if err != nil {
		return s.fail(ctx, span, o, req.Mode, nil, failureMessage(err))
	}

	delivery := marketplace.Delivery{OrderID: o.OrderID, BuyerID: o.BuyerID, ItemID: o.ItemID}
	var (
		resolved *inventory.Resolved
		cardID   *int64
		delay    time.Duration
	)
	switch req.Mode {
	case ModeCustom:
		delivery.Content = req.CustomContent
	default:
		resolved, err = s.matcher.Match(ctx, inventory.MatchRequest{
			OrderID:   o.OrderID,
			ItemID:    o.ItemID,
			SpecName:  o.SpecName,
			SpecValue: o.SpecValue,
		})
		if err != nil {
			return s.fail(ctx, span, o, req.Mode, nil, contentFailure(err))
		}
		id := resolved.Card.ID
		cardID = &id
		delivery.Content = resolved.Content
		delivery.ImageURL = resolved.ImageURL
		delay = time.Duration(resolved.Card.DelaySeconds) * time.Second
	}

	// from here on a claimed stock line must go back on every failure path
	abort := func(msg string) ItemResult {
		if rerr := s.matcher.Release(context.WithoutCancel(ctx), o.OrderID, resolved); rerr != nil {
			s.logger.Error("release stock line failed", "order_id", o.OrderID, "error", rerr)
		}
		return s.fail(ctx, span, o, req.Mode, cardID, msg)
	}

	if delay > 0 {
		if err := s.opts.Sleep(ctx, delay); err != nil {
			return abort("send failed: " + err.Error())
		}
	}

	current, err := s.orders.Get(ctx, o.OrderID)
	if err != nil {
		return abort(failureMessage(err))
	}
	if current.SystemShipped {
		return abort(MsgAlreadyShipped)
	}
	if !current.Status.Shippable() {
		return abort(MsgIneligible)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	err = s.market.SendContent(callCtx, sess, delivery)
	cancel()
	if err != nil {
		return abort("send failed: " + err.Error())
	}

	won, err := s.orders.CompareAndSetShipped(ctx, o.OrderID)
	if err != nil {
		// content is already with the buyer, so the claimed line stays claimed
		return s.fail(ctx, span, o, req.Mode, cardID, err.Error())
	}
	if !won {
		return s.fail(ctx, span, o, req.Mode, cardID, MsgAlreadyShipped)
	}

	s.log(ctx, o.OrderID, req.Mode, cardID, ShipmentSent, MsgShipped)
	s.logger.Info("order shipped", "order_id", o.OrderID, "mode", req.Mode)
	return s.finish(ctx, span, o.OrderID, true, MsgShipped)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func failureMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return MsgNotFound
	case errors.Is(err, apperr.ErrNoMatch):
		return MsgNoMatch
	case errors.Is(err, apperr.ErrStockExhausted):
		return MsgStockExhausted
	case errors.Is(err, apperr.ErrAccountOff):
		return MsgAccountOff
	case errors.Is(err, apperr.ErrIneligible):
		return MsgIneligible
	default:
		return err.Error()
	}
}

// contentFailure labels matcher errors. Unclassified ones come from card
// content resolution, such as an api card whose endpoint failed.
func contentFailure(err error) string {
	msg := failureMessage(err)
	if msg == err.Error() && !apperr.IsStorage(err) {
		return "card content unavailable: " + msg
	}
	return msg
}

func (s *service) fail(ctx context.Context, span trace.Span, o *order.Order, mode Mode, cardID *int64, msg string) ItemResult {
	s.log(ctx, o.OrderID, mode, cardID, ShipmentFailed, msg)
	s.logger.Warn("order not shipped", "order_id", o.OrderID, "reason", msg)
	return s.finish(ctx, span, o.OrderID, false, msg)
}

func (s *service) finish(ctx context.Context, span trace.Span, orderID string, ok bool, msg string) ItemResult {
	outcome := "failed"
	if ok {
		outcome = "shipped"
	}
	span.SetAttributes(attribute.String("ship.outcome", msg))
	if s.counter != nil {
		s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return ItemResult{OrderID: orderID, Success: ok, Message: msg}
}

func (s *service) log(ctx context.Context, orderID string, mode Mode, cardID *int64, status ShipmentStatus, msg string) {
	err := s.shipments.Create(context.WithoutCancel(ctx), &Shipment{
		ID:      uuid.New(),
		OrderID: orderID,
		Mode:    mode,
		CardID:  cardID,
		Status:  status,
		Message: msg,
	})
	if err != nil {
		s.logger.Error("write shipment log failed", "order_id", orderID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// orderLocks is a keyed mutex; entries are dropped once no caller holds or
// waits on them.
type orderLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (l *orderLocks) lock(key string) func() {
	l.mu.Lock()
	e, ok := l.held[key]
	if !ok {
		e = &lockEntry{}
		l.held[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}
}
