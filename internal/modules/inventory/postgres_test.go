package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/platform/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "cards.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T) (Service, Repository) {
	repo := NewPostgresRepository(setupTestDB(t))
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func strPtr(s string) *string { return &s }

func TestCreateDataCardReportsStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	c, err := svc.CreateCard(ctx, CardRequest{Name: "codes", Type: "data", DataContent: strPtr("A1\n\n B2 \r\nC3\n")})
	require.NoError(t, err)

	got, err := svc.GetCard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockRemaining)
	assert.Equal(t, "A1\nB2\nC3", got.DataContent)
	assert.True(t, got.Enabled)
}

func TestCreateCardValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cases := []CardRequest{
		{Type: "text", TextContent: "x"},
		{Name: "n", Type: "voucher"},
		{Name: "n", Type: "text"},
		{Name: "n", Type: "api"},
		{Name: "n", Type: "image"},
		{Name: "n", Type: "text", TextContent: "x", DelaySeconds: -1},
		{Name: "n", Type: "text", TextContent: "x", IsMultiSpec: true, SpecName: "颜色"},
	}
	for i, req := range cases {
		_, err := svc.CreateCard(ctx, req)
		assert.True(t, apperr.IsValidation(err), "case %d: %v", i, err)
	}
}

func TestClaimLineLowestFirstAndExhaustion(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	c, err := svc.CreateCard(ctx, CardRequest{Name: "codes", Type: "data", DataContent: strPtr("L1\nL2")})
	require.NoError(t, err)

	first, err := repo.ClaimLine(ctx, c.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, "L1", first.Content)

	again, err := repo.ClaimLine(ctx, c.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	second, err := repo.ClaimLine(ctx, c.ID, "o2")
	require.NoError(t, err)
	assert.Equal(t, "L2", second.Content)

	_, err = repo.ClaimLine(ctx, c.ID, "o3")
	assert.ErrorIs(t, err, apperr.ErrStockExhausted)

	require.NoError(t, repo.ReleaseLine(ctx, first.ID, "o1"))
	third, err := repo.ClaimLine(ctx, c.ID, "o3")
	require.NoError(t, err)
	assert.Equal(t, "L1", third.Content)
}

func TestConcurrentClaimsNeverShareALine(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	c, err := svc.CreateCard(ctx, CardRequest{Name: "codes", Type: "data", DataContent: strPtr("a\nb\nc\nd\ne")})
	require.NoError(t, err)

	const workers = 12
	var mu sync.Mutex
	claimed := map[int64]string{}
	exhausted := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderID := fmt.Sprintf("o%d", i)
			line, err := repo.ClaimLine(ctx, c.ID, orderID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrStockExhausted)
				exhausted++
				return
			}
			prev, dup := claimed[line.ID]
			assert.False(t, dup, "line %d claimed by %s and %s", line.ID, prev, orderID)
			claimed[line.ID] = orderID
		}(i)
	}
	wg.Wait()

	assert.Len(t, claimed, 5)
	assert.Equal(t, workers-5, exhausted)
}

func TestUpdateReplacesOnlyUnclaimedStock(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	c, err := svc.CreateCard(ctx, CardRequest{Name: "codes", Type: "data", DataContent: strPtr("old1\nold2")})
	require.NoError(t, err)

	_, err = repo.ClaimLine(ctx, c.ID, "o1")
	require.NoError(t, err)

	got, err := svc.UpdateCard(ctx, c.ID, CardRequest{Name: "codes v2", Type: "data", DataContent: strPtr("new1\nnew2\nnew3")})
	require.NoError(t, err)
	assert.Equal(t, "codes v2", got.Name)
	assert.Equal(t, "new1\nnew2\nnew3", got.DataContent)

	// the claimed line survives and is still held by o1
	held, err := repo.ClaimLine(ctx, c.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, "old1", held.Content)

	got, err = svc.UpdateCard(ctx, c.ID, CardRequest{Name: "codes v3", Type: "data"})
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockRemaining)
}

func TestListCandidates(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	off := false
	_, err := svc.CreateCard(ctx, CardRequest{Name: "generic", Type: "text", TextContent: "g"})
	require.NoError(t, err)
	_, err = svc.CreateCard(ctx, CardRequest{Name: "bound", Type: "text", TextContent: "b", ItemID: "item-1"})
	require.NoError(t, err)
	_, err = svc.CreateCard(ctx, CardRequest{Name: "other", Type: "text", TextContent: "o", ItemID: "item-2"})
	require.NoError(t, err)
	_, err = svc.CreateCard(ctx, CardRequest{Name: "off", Type: "text", TextContent: "x", Enabled: &off})
	require.NoError(t, err)

	cards, err := repo.ListCandidates(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "generic", cards[0].Name)
	assert.Equal(t, "bound", cards[1].Name)
}

func TestDeleteCard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c, err := svc.CreateCard(ctx, CardRequest{Name: "codes", Type: "data", DataContent: strPtr("x")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCard(ctx, c.ID))
	assert.ErrorIs(t, svc.DeleteCard(ctx, c.ID), apperr.ErrNotFound)
	_, err = svc.GetCard(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
