package reconcile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/modules/order"
)

func TestRefreshEndpoints(t *testing.T) {
	repo := order.NewPostgresRepository(setupTestDB(t))
	seedOrder(t, repo, "a1", "acc", order.StatusPendingShip)
	seedOrder(t, repo, "a2", "acc", order.StatusPendingShip)
	seedOrder(t, repo, "b1", "other", order.StatusPendingShip)
	seedOrder(t, repo, "done", "acc", order.StatusCompleted)
	mp := new(MockMarketplace)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "a1").Return(remote("a1", "shipped"), nil)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "a2").
		Return(nil, &apperr.AdapterError{Kind: apperr.AdapterTimeout, Op: "fetch order"})
	mp.On("FetchOrder", mock.Anything, mock.Anything, "b1").Return(remote("b1", "pending_ship"), nil)
	mp.On("FetchOrder", mock.Anything, mock.Anything, "done").Return(remote("done", "completed"), nil)

	r := chi.NewRouter()
	NewHandler(NewService(repo, stubSessions{"acc": true, "other": true}, mp, Options{}, quietLogger())).RegisterRoutes(r)

	serve := func(req *http.Request) (int, map[string]interface{}) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	form := url.Values{"cookie_id": {"acc"}}
	req := httptest.NewRequest(http.MethodPost, "/api/orders/refresh", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, out := serve(req)
	require.Equal(t, http.StatusOK, code, out)
	summary := out["summary"].(map[string]interface{})
	assert.EqualValues(t, 2, summary["total"])
	assert.EqualValues(t, 1, summary["updated"])
	assert.EqualValues(t, 1, summary["failed"])
	updated := out["updated_orders"].([]interface{})
	require.Len(t, updated, 1)
	assert.Equal(t, "已发货", updated[0].(map[string]interface{})["status_text"])
	assert.Len(t, out["failed_orders"].([]interface{}), 1)

	code, out = serve(httptest.NewRequest(http.MethodPost, "/api/orders/verify-all", nil))
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, out["total"])
	assert.EqualValues(t, 3, out["success_count"])
	assert.EqualValues(t, 1, out["failed_count"])
	assert.EqualValues(t, 0, out["updated_count"])

	code, out = serve(httptest.NewRequest(http.MethodPost, "/api/orders/a2/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, false, out["success"])

	code, _ = serve(httptest.NewRequest(http.MethodPost, "/api/orders/missing/refresh", nil))
	assert.Equal(t, http.StatusNotFound, code)
}
