package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

// Handler exposes login and token verification. Both routes are public.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.login)  // POST /login
	r.Get("/verify", h.verify) // GET  /verify
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	sess, err := h.service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		httpx.Respond(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"token":    sess.Token,
		"user_id":  sess.UserID,
		"username": sess.Username,
		"is_admin": sess.IsAdmin,
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	raw, ok := httpx.BearerToken(r)
	if !ok {
		httpx.Respond(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	sess, err := h.service.Verify(r.Context(), raw)
	if errors.Is(err, ErrInvalidCredentials) {
		httpx.Respond(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user_id":       sess.UserID,
		"username":      sess.Username,
		"is_admin":      sess.IsAdmin,
	})
}
