package reconcile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xyops/xianyu-backend/internal/modules/order"
	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

// Handler exposes the refresh endpoints of the order console.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/orders/refresh", h.refresh)                  // POST /api/orders/refresh (form: cookie_id, status)
	r.Post("/api/orders/verify-all", h.verifyAll)             // POST /api/orders/verify-all
	r.Post("/api/orders/{order_id}/refresh", h.refreshSingle) // POST /api/orders/{order_id}/refresh
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	// FormValue parses both urlencoded and multipart bodies
	f := Filter{
		AccountID: r.FormValue("cookie_id"),
		Statuses:  order.ParseStatuses(r.FormValue("status")),
	}
	res, err := h.service.ReconcileMany(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "refresh finished",
		"summary":        res,
		"updated_orders": res.Changes,
		"failed_orders":  res.Failures,
	})
}

func (h *Handler) verifyAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ReconcileMany(r.Context(), Filter{All: true})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"total":         res.Total,
		"success_count": res.Updated + res.NoChange,
		"failed_count":  res.Failed,
		"updated_count": res.Updated,
	})
}

func (h *Handler) refreshSingle(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ReconcileOne(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        out,
		"status_text": order.StatusText(out.NewStatus),
	})
}
