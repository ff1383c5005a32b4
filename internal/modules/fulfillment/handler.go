package fulfillment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xyops/xianyu-backend/internal/platform/httpx"
)

// Handler exposes the shipment endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/orders/manual-ship", h.manualShip)             // POST /api/orders/manual-ship
	r.Get("/api/orders/{order_id}/shipments", h.listShipments) // GET  /api/orders/{order_id}/shipments
}

func (h *Handler) manualShip(w http.ResponseWriter, r *http.Request) {
	var req ShipRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	res, err := h.service.ShipOrders(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"total":         res.Total,
		"success_count": res.SuccessCount,
		"failed_count":  res.FailedCount,
		"results":       res.Results,
	})
}

func (h *Handler) listShipments(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListShipments(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{"success": true, "data": list})
}
