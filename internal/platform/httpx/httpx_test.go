package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		apperr.Validation("order_ids", "must not be empty"):          http.StatusBadRequest,
		fmt.Errorf("get: %w", apperr.NotFound("order", "1")):         http.StatusNotFound,
		apperr.ErrAlreadyShipped:                                      http.StatusConflict,
		&apperr.AdapterError{Kind: apperr.AdapterRateLimited, Op: "x"}: http.StatusBadGateway,
		apperr.Storage("list", fmt.Errorf("boom")):                    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusOf(err), err.Error())
	}
}

func signed(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	claims := &Claims{Username: "admin", IsAdmin: true, StandardClaims: jwt.StandardClaims{
		Subject:   "u-1",
		ExpiresAt: exp.Unix(),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestRequireBearer(t *testing.T) {
	secret := []byte("s3cret")
	var seen *Claims
	h := RequireBearer(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, "other", time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", time.Now().Add(-time.Minute)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "bearer "+signed(t, "s3cret", time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "u-1", seen.Subject)
		assert.True(t, seen.IsAdmin)
	})
}
