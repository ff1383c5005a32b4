package order

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

// Handler exposes order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/orders", h.listOrders)                 // GET    /api/orders?cookie_id&status&page&page_size
	r.Post("/api/orders", h.ingestOrder)               // POST   /api/orders
	r.Get("/api/orders/{order_id}", h.getOrder)        // GET    /api/orders/{order_id}
	r.Put("/api/orders/{order_id}", h.updateOrder)     // PUT    /api/orders/{order_id}
	r.Delete("/api/orders/{order_id}", h.deleteOrder)  // DELETE /api/orders/{order_id}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	res, err := h.service.ListOrders(r.Context(), Filter{
		AccountID: q.Get("cookie_id"),
		Statuses:  ParseStatuses(q.Get("status")),
	}, page, pageSize)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	totalPages := (res.Total + res.PageSize - 1) / res.PageSize
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        res.Orders,
		"total":       res.Total,
		"page":        res.Page,
		"page_size":   res.PageSize,
		"total_pages": totalPages,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": o})
}

func (h *Handler) ingestOrder(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	o, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": o})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := httpx.Decode(r, &p); err != nil {
		httpx.Error(w, err)
		return
	}
	o, err := h.service.UpdateOrder(r.Context(), chi.URLParam(r, "order_id"), p)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "message": "updated", "data": o})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "order_id")); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "message": "deleted"})
}

// ParseStatuses splits a comma separated status query value.
func ParseStatuses(raw string) []Status {
	var out []Status
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, Status(s))
		}
	}
	return out
}
