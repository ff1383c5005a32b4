package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/modules/marketplace"
	"github.com/xyops/xianyu-backend/internal/modules/order"
	"github.com/xyops/xianyu-backend/internal/platform/database"
)

// MockMarketplace simulates the marketplace bridge
type MockMarketplace struct {
	mock.Mock
}

func (m *MockMarketplace) FetchOrder(ctx context.Context, s marketplace.Session, orderID string) (*marketplace.RemoteOrder, error) {
	args := m.Called(ctx, s, orderID)
	if ro, ok := args.Get(0).(*marketplace.RemoteOrder); ok {
		return ro, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMarketplace) SendContent(ctx context.Context, s marketplace.Session, d marketplace.Delivery) error {
	return m.Called(ctx, s, d).Error(0)
}

type stubSessions map[string]bool

func (s stubSessions) Session(_ context.Context, accountID string) (marketplace.Session, error) {
	enabled, ok := s[accountID]
	if !ok {
		return marketplace.Session{}, apperr.NotFound("account", accountID)
	}
	if !enabled {
		return marketplace.Session{}, apperr.ErrAccountOff
	}
	return marketplace.Session{AccountID: accountID, Cookie: "cookie-" + accountID}, nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "reconcile.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seedOrder(t *testing.T, repo order.Repository, id, account string, st order.Status) *order.Order {
	t.Helper()
	o, err := repo.Upsert(context.Background(), &order.Order{OrderID: id, AccountID: account, Quantity: 1, Status: st})
	require.NoError(t, err)
	return o
}

func remote(id, status string) *marketplace.RemoteOrder {
	return &marketplace.RemoteOrder{OrderID: id, Status: status}
}

func TestReconcileOneScenario(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "4001", "acc", order.StatusPendingShip)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "4001").Return(remote("4001", "shipped"), nil).Once()
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	// Act
	out, err := svc.ReconcileOne(ctx, "4001")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &Outcome{OrderID: "4001", OldStatus: order.StatusPendingShip, NewStatus: order.StatusShipped, Changed: true}, out)
	got, err := repo.Get(ctx, "4001")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.False(t, got.SystemShipped)
	mp.AssertExpectations(t)
}

func TestReconcileOneNoChangeDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	before := seedOrder(t, repo, "4001", "acc", order.StatusPendingShip)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "4001").Return(remote("4001", "pending_ship"), nil)
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())
	time.Sleep(2 * time.Millisecond)

	out, err := svc.ReconcileOne(ctx, "4001")

	require.NoError(t, err)
	assert.False(t, out.Changed)
	after, err := repo.Get(ctx, "4001")
	require.NoError(t, err)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestReconcileOneKeepsUnknownStatusVerbatim(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "4001", "acc", order.StatusProcessing)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "4001").Return(remote("4001", "拍卖中"), nil)
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	out, err := svc.ReconcileOne(ctx, "4001")

	require.NoError(t, err)
	assert.True(t, out.Changed)
	got, _ := repo.Get(ctx, "4001")
	assert.Equal(t, order.Status("拍卖中"), got.Status)
	assert.Equal(t, "未知", got.StatusText)
}

func TestReconcileOneAdapterFailureLeavesOrder(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	before := seedOrder(t, repo, "4001", "acc", order.StatusPendingShip)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "4001").
		Return(nil, &apperr.AdapterError{Kind: apperr.AdapterAuthExpired, Op: "fetch order"})
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	_, err := svc.ReconcileOne(ctx, "4001")

	assert.True(t, apperr.IsAdapter(err))
	after, _ := repo.Get(ctx, "4001")
	assert.Equal(t, before.Status, after.Status)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestReconcileOneTimesOut(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "4001", "acc", order.StatusPendingShip)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "4001").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, &apperr.AdapterError{Kind: apperr.AdapterTimeout, Op: "fetch order", Err: context.DeadlineExceeded})
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{CallTimeout: 20 * time.Millisecond}, quietLogger())

	_, err := svc.ReconcileOne(ctx, "4001")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	got, _ := repo.Get(ctx, "4001")
	assert.Equal(t, order.StatusPendingShip, got.Status)
}

func TestReconcileManyPartialFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	mp := new(MockMarketplace)
	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("o%d", i)
		seedOrder(t, repo, id, "acc", order.StatusPendingShip)
		switch {
		case i <= 2:
			mp.On("FetchOrder", mock.Anything, mock.Anything, id).
				Return(nil, &apperr.AdapterError{Kind: apperr.AdapterRateLimited, Op: "fetch order"})
		case i <= 4:
			mp.On("FetchOrder", mock.Anything, mock.Anything, id).Return(remote(id, "shipped"), nil)
		default:
			mp.On("FetchOrder", mock.Anything, mock.Anything, id).Return(remote(id, "pending_ship"), nil)
		}
	}
	seedOrder(t, repo, "gone", "missing-acc", order.StatusPendingShip)
	seedOrder(t, repo, "done", "acc", order.StatusCompleted)
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{Concurrency: 3}, quietLogger())

	// Act
	res, err := svc.ReconcileMany(ctx, Filter{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 2, res.NoChange)
	assert.Len(t, res.Failures, 3)
	for _, id := range []string{"o1", "o2", "gone"} {
		o, _ := repo.Get(ctx, id)
		assert.Equal(t, order.StatusPendingShip, o.Status, id)
	}
	require.Len(t, res.Changes, 2)
	assert.Equal(t, "已发货", res.Changes[0].StatusText)
	mp.AssertNotCalled(t, "FetchOrder", mock.Anything, mock.Anything, "done")
}

func TestReconcileManyVerifyAllSweepsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "done", "acc", order.StatusCompleted)
	seedOrder(t, repo, "open", "acc", order.StatusProcessing)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "done").Return(remote("done", "refunding"), nil)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "open").Return(remote("open", "processing"), nil)
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	res, err := svc.ReconcileMany(ctx, Filter{All: true})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.NoChange)
}

func TestReconcileManyAccountAndStatusFilter(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "a1", "acc1", order.StatusRefunding)
	seedOrder(t, repo, "a2", "acc1", order.StatusPendingShip)
	seedOrder(t, repo, "b1", "acc2", order.StatusRefunding)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "a1").Return(remote("a1", "refund_cancelled"), nil)
	svc := NewService(repo, stubSessions{"acc1": true, "acc2": true}, mp, Options{}, quietLogger())

	res, err := svc.ReconcileMany(ctx, Filter{AccountID: "acc1", Statuses: []order.Status{order.StatusRefunding}})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, order.StatusRefundCancelled, res.Changes[0].NewStatus)
	mp.AssertNumberOfCalls(t, "FetchOrder", 1)
}

type gatedMarketplace struct {
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedMarketplace) FetchOrder(ctx context.Context, _ marketplace.Session, orderID string) (*marketplace.RemoteOrder, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.entered)
	}
	<-g.release
	return remote(orderID, "shipped"), nil
}

func (g *gatedMarketplace) SendContent(context.Context, marketplace.Session, marketplace.Delivery) error {
	return nil
}

func TestReconcileOneCollapsesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "4001", "acc", order.StatusPendingShip)
	mp := &gatedMarketplace{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	var wg sync.WaitGroup
	outs := make([]*Outcome, 5)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.ReconcileOne(ctx, "4001")
			assert.NoError(t, err)
			outs[i] = out
		}(i)
		if i == 0 {
			<-mp.entered
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(mp.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&mp.calls))
	for _, out := range outs {
		assert.True(t, out.Changed)
	}
}

func TestReconcileOneCallerCancelLeavesSharedCallRunning(t *testing.T) {
	// Arrange
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "4001", "acc", order.StatusPendingShip)
	mp := &gatedMarketplace{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	leaving, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.ReconcileOne(leaving, "4001")
		firstErr <- err
	}()
	<-mp.entered

	type result struct {
		out *Outcome
		err error
	}
	second := make(chan result, 1)
	go func() {
		out, err := svc.ReconcileOne(context.Background(), "4001")
		second <- result{out, err}
	}()
	time.Sleep(50 * time.Millisecond)

	// Act
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(mp.release)
	got := <-second

	// Assert
	require.NoError(t, got.err)
	assert.True(t, got.out.Changed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&mp.calls))
	stored, err := repo.Get(context.Background(), "4001")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, stored.Status)
}

// failingListRepo is an order store whose List always fails.
type failingListRepo struct {
	order.Repository
}

func (failingListRepo) List(context.Context, order.Filter, int, int) ([]*order.Order, int, error) {
	return nil, 0, apperr.Storage("list orders", errors.New("connection reset"))
}

func TestReconcileManyListFailureAbortsBatch(t *testing.T) {
	repo := failingListRepo{order.NewPostgresRepository(setupTestDB(t))}
	mp := new(MockMarketplace)
	svc := NewService(repo, stubSessions{"acc": true}, mp, Options{}, quietLogger())

	res, err := svc.ReconcileMany(context.Background(), Filter{})

	assert.Nil(t, res)
	var storageErr *apperr.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "list orders", storageErr.Op)
	mp.AssertNotCalled(t, "FetchOrder", mock.Anything, mock.Anything, mock.Anything)
}

type scriptedMarketplace struct {
	script map[string]string // order id -> remote status, "" means fail
}

func (s scriptedMarketplace) FetchOrder(_ context.Context, _ marketplace.Session, orderID string) (*marketplace.RemoteOrder, error) {
	st := s.script[orderID]
	if st == "" {
		return nil, &apperr.AdapterError{Kind: apperr.AdapterTransient, Op: "fetch order"}
	}
	return remote(orderID, st), nil
}

func (s scriptedMarketplace) SendContent(context.Context, marketplace.Session, marketplace.Delivery) error {
	return nil
}

func TestReconcileManyCountProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("updated + no_change + failed == total and failures keep their status",
		prop.ForAll(
			func(plan []int) bool {
				ctx := context.Background()
				repo := order.NewPostgresRepository(setupTestDB(t))
				script := map[string]string{}
				for i, p := range plan {
					id := fmt.Sprintf("o%03d", i)
					seedOrder(t, repo, id, "acc", order.StatusPendingShip)
					switch p {
					case 0:
						script[id] = ""
					case 1:
						script[id] = "pending_ship"
					default:
						script[id] = "completed"
					}
				}
				svc := NewService(repo, stubSessions{"acc": true}, scriptedMarketplace{script}, Options{Concurrency: 4}, quietLogger())

				res, err := svc.ReconcileMany(ctx, Filter{})
				if err != nil || res.Total != len(plan) || res.Updated+res.NoChange+res.Failed != res.Total {
					return false
				}
				for id, st := range script {
					o, err := repo.Get(ctx, id)
					if err != nil {
						return false
					}
					if st == "" && o.Status != order.StatusPendingShip {
						return false
					}
				}
				return true
			},
			gen.SliceOfN(12, gen.IntRange(0, 2)),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
