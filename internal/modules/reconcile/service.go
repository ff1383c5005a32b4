// Package reconcile brings locally cached order statuses in line with the
// marketplace.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xyops/xianyu-backend/internal/modules/marketplace"
	"github.com/xyops/xianyu-backend/internal/modules/order"
)

const candidatePageSize = 1000

// SessionSource resolves the marketplace credential of an account.
type SessionSource interface {
	Session(ctx context.Context, accountID string) (marketplace.Session, error)
}

// Service defines status reconciliation.
type Service interface {
	// ReconcileOne compares one order against the marketplace and writes the
	// new status only when it differs. On any failure the order is untouched.
	ReconcileOne(ctx context.Context, orderID string) (*Outcome, error)

	// ReconcileMany runs ReconcileOne over every candidate. Per-order failures
	// are counted; only a failure to list candidates aborts the batch.
	ReconcileMany(ctx context.Context, f Filter) (*Result, error)
}

type Options struct {
	Concurrency int
	CallTimeout time.Duration
}

type service struct {
	orders   order.Repository
	sessions SessionSource
	market   marketplace.Marketplace
	opts     Options
	logger   *slog.Logger

	flight  singleflight.Group
	tracer  trace.Tracer
	counter metric.Int64Counter
}

func NewService(orders order.Repository, sessions SessionSource, market marketplace.Marketplace, opts Options, logger *slog.Logger) Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 20 * time.Second
	}
	counter, err := otel.Meter("reconcile").Int64Counter("reconcile.orders",
		metric.WithDescription("orders reconciled, by outcome"))
	if err != nil {
		logger.Warn("reconcile counter unavailable", "error", err)
	}
	return &service{
		orders:   orders,
		sessions: sessions,
		market:   market,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("reconcile"),
		counter:  counter,
	}
}

// ReconcileOne shares one in-flight reconcile per order. The shared call is
// detached from the caller that started it and bounded by CallTimeout, so a
// caller leaving early only stops its own wait.
func (s *service) ReconcileOne(ctx context.Context, orderID string) (*Outcome, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(orderID, func() (interface{}, error) {
		return s.reconcile(detached, orderID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*Outcome)
		return &out, nil
	}
}

func (s *service) reconcile(ctx context.Context, orderID string) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.order",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	sess, err := s.sessions.Session(ctx, o.AccountID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	remote, err := s.market.FetchOrder(callCtx, sess, orderID)
	cancel()
	if err != nil {
		return nil, s.fail(span, err)
	}

	out := &Outcome{OrderID: orderID, OldStatus: o.Status, NewStatus: order.Status(remote.Status)}
	if out.NewStatus == "" || out.NewStatus == o.Status {
		out.NewStatus = o.Status
		s.record(ctx, "no_change")
		return out, nil
	}

	if !out.NewStatus.Known() {
		s.logger.Warn("unrecognised marketplace status", "order_id", orderID, "status", remote.Status)
	}
	st := out.NewStatus
	if _, err := s.orders.Update(ctx, orderID, order.Patch{Status: &st}); err != nil {
		return nil, s.fail(span, err)
	}
	out.Changed = true
	span.SetAttributes(
		attribute.String("order.old_status", string(out.OldStatus)),
		attribute.String("order.new_status", string(out.NewStatus)),
	)
	s.record(ctx, "updated")
	s.logger.Info("order status reconciled", "order_id", orderID,
		"old_status", out.OldStatus, "new_status", out.NewStatus)
	return out, nil
}

func (s *service) ReconcileMany(ctx context.Context, f Filter) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.batch")
	defer span.End()

	candidates, err := s.candidates(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list candidates")
		return nil, err
	}
	span.SetAttributes(attribute.Int("batch.size", len(candidates)))

	outcomes := make([]*Outcome, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, o := range candidates {
		i, id := i, o.OrderID
		g.Go(func() error {
			outcomes[i], errs[i] = s.ReconcileOne(ctx, id)
			return nil
		})
	}
	g.Wait()

	res := &Result{Total: len(candidates), Changes: []Change{}, Failures: []Failure{}}
	for i, o := range candidates {
		switch {
		case errs[i] != nil:
			res.Failed++
			res.Failures = append(res.Failures, Failure{OrderID: o.OrderID, Error: errs[i].Error()})
			s.logger.Warn("order reconcile failed", "order_id", o.OrderID, "error", errs[i])
		case outcomes[i].Changed:
			res.Updated++
			res.Changes = append(res.Changes, Change{
				OrderID:    o.OrderID,
				OldStatus:  outcomes[i].OldStatus,
				NewStatus:  outcomes[i].NewStatus,
				StatusText: order.StatusText(outcomes[i].NewStatus),
			})
		default:
			res.NoChange++
		}
	}

	span.SetAttributes(
		attribute.Int("batch.updated", res.Updated),
		attribute.Int("batch.failed", res.Failed),
	)
	s.logger.Info("reconcile batch finished", "total", res.Total,
		"updated", res.Updated, "no_change", res.NoChange, "failed", res.Failed)
	return res, nil
}

// candidates snapshots the matching orders before any status is rewritten,
// so offset paging is not disturbed by the batch's own updates.
func (s *service) candidates(ctx context.Context, f Filter) ([]*order.Order, error) {
	lf := order.Filter{AccountID: f.AccountID}
	switch {
	case f.All:
	case len(f.Statuses) > 0:
		lf.Statuses = f.Statuses
	default:
		lf.Statuses = order.ActiveStatuses
	}

	var all []*order.Order
	for page := 1; ; page++ {
		batch, total, err := s.orders.List(ctx, lf, page, candidatePageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < candidatePageSize || len(all) >= total {
			return all, nil
		}
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.record(context.Background(), "failed")
	return err
}

func (s *service) record(ctx context.Context, outcome string) {
	if s.counter == nil {
		return
	}
	s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
