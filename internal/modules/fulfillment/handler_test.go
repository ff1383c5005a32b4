package fulfillment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xyops/xianyu-backend/internal/modules/order"
)

func TestManualShipEndpoint(t *testing.T) {
	mp := new(MockMarketplace)
	mp.On("SendContent", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f := newFixture(t, mp)
	f.seed(t, "4001", "acc", "i1", order.StatusPendingShip)
	r := chi.NewRouter()
	NewHandler(f.service(Options{})).RegisterRoutes(r)

	do := func(method, path, body string) (int, map[string]interface{}) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	code, out := do(http.MethodPost, "/api/orders/manual-ship",
		`{"order_ids":["4001","nope"],"ship_mode":"custom","custom_content":"CODE-123"}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.EqualValues(t, 2, out["total"])
	assert.EqualValues(t, 1, out["success_count"])
	assert.EqualValues(t, 1, out["failed_count"])
	results := out["results"].([]interface{})
	assert.Equal(t, "shipped", results[0].(map[string]interface{})["message"])
	assert.Equal(t, "order not found", results[1].(map[string]interface{})["message"])

	code, out = do(http.MethodPost, "/api/orders/manual-ship", `{"order_ids":[],"ship_mode":"auto_match"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, out["success"])

	code, _ = do(http.MethodPost, "/api/orders/manual-ship", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = do(http.MethodGet, "/api/orders/4001/shipments", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["data"].([]interface{}), 1)

	code, _ = do(http.MethodGet, "/api/orders/nope/shipments", "")
	assert.Equal(t, http.StatusNotFound, code)

	mp.AssertNumberOfCalls(t, "SendContent", 1)
}
