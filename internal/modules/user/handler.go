package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the operator endpoints. Registration is admin only.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/api/users", h.registerUser)
	router.Get("/api/users/{id}", h.getUser)
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	if claims, ok := httpx.ClaimsFrom(r.Context()); !ok || !claims.IsAdmin {
		httpx.Respond(w, http.StatusForbidden, map[string]interface{}{"success": false, "error": "admin only"})
		return
	}

	var req RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, map[string]interface{}{"success": true, "data": user})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": user})
}

