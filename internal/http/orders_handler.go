package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
	"github.com/mg-gouda/e-commerce-sub000/internal/order"
)

type OrdersHandler struct {
	factory *order.Factory
	timeout time.Duration
}

func NewOrdersHandler(factory *order.Factory, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		factory: factory,
		timeout: timeout,
	}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.factory.ListOrders(ctx, identity(ctx))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	o, err := h.factory.GetOrder(ctx, orderID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	// Someone else's order looks exactly like a missing one.
	if o.OwnerID != identity(ctx) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// PUT /api/v1/orders/{order_id}/status is the operator surface for moving
// an order through fulfilment.
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	next := domain.OrderStatus(req.Status)
	switch next {
	case domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
	default:
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	o, err := h.factory.AdvanceStatus(ctx, orderID, next)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return uuid.Nil, false
	}
	return orderID, true
}
