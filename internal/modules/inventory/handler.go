package inventory

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xyops/xianyu-backend/internal/apperr"
	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

// Handler exposes card HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cards", func(r chi.Router) {
		r.Get("/", h.listCards)          // GET    /cards
		r.Post("/", h.createCard)        // POST   /cards
		r.Get("/{id}", h.getCard)        // GET    /cards/{id}
		r.Put("/{id}", h.updateCard)     // PUT    /cards/{id}
		r.Delete("/{id}", h.deleteCard)  // DELETE /cards/{id}
	})
}

func (h *Handler) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCards(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": cards})
}

func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	var req CardRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	c, err := h.service.CreateCard(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, map[string]interface{}{"success": true, "id": c.ID, "data": c})
}

func (h *Handler) getCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	c, err := h.service.GetCard(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": c})
}

func (h *Handler) updateCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req CardRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	c, err := h.service.UpdateCard(r.Context(), id, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": c})
}

func (h *Handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.service.DeleteCard(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "message": "deleted"})
}

func cardID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "must be a positive integer")
	}
	return id, nil
}
