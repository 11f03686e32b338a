package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/order"
)

type CheckoutHandler struct {
	carts   cart.Store
	factory *order.Factory
	timeout time.Duration
}

func NewCheckoutHandler(carts cart.Store, factory *order.Factory, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		carts:   carts,
		factory: factory,
		timeout: timeout,
	}
}

type CheckoutRequestDTO struct {
	CouponCode string `json:"coupon_code,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// The body is optional: a bare POST checks out without a coupon.
	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.Resolve(ctx, getOwnerID(ctx), getSessionID(ctx))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	o, err := h.factory.CreateOrder(ctx, c, req.CouponCode)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}
