package account

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

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Put("/{id}", h.updateAccount)
		r.Delete("/{id}", h.deleteAccount)
		r.Get("/{id}/ai-settings", h.getAISettings)
		r.Put("/{id}/ai-settings", h.saveAISettings)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	masked := make([]*Account, len(accounts))
	for i, a := range accounts {
		masked[i] = a.Masked()
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": masked})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	a, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, map[string]interface{}{"success": true, "data": a.Masked()})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": a})
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	a, err := h.service.UpdateAccount(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": a.Masked()})
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "message": "deleted"})
}

func (h *Handler) getAISettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetAISettings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": s})
}

func (h *Handler) saveAISettings(w http.ResponseWriter, r *http.Request) {
	var in AISettings
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	s, err := h.service.SaveAISettings(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": s})
}
