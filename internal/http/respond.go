package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/coupon"
	"github.com/mg-gouda/e-commerce-sub000/internal/order"
	"github.com/mg-gouda/e-commerce-sub000/internal/payment"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleDomainError maps the error taxonomy of the inner packages onto HTTP
// statuses. Unknown errors are logged and become an opaque 500.
func handleDomainError(w http.ResponseWriter, err error) {
	var insufficientErr stock.InsufficientStockError
	var invalidCouponErr coupon.InvalidCouponError

	switch {
	case errors.Is(err, cart.ErrMissingIdentity):
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or session identity")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
	case errors.Is(err, cart.ErrCartLineNotFound):
		respondError(w, http.StatusNotFound, "not_found", "cart line not found")
	case errors.Is(err, stock.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.As(err, &insufficientErr):
		respondError(w, http.StatusConflict, "insufficient_stock", insufficientErr.Error())
	case errors.As(err, &invalidCouponErr):
		respondError(w, http.StatusUnprocessableEntity, "invalid_coupon", invalidCouponErr.Reason)
	case errors.Is(err, order.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cannot check out an empty cart")
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, order.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", "order status cannot change that way")
	case errors.Is(err, payment.ErrOrderNotPending):
		respondError(w, http.StatusConflict, "order_not_pending", "payment intents require a pending order")
	case errors.Is(err, payment.ErrUnknownProvider):
		respondError(w, http.StatusBadRequest, "unknown_provider", "unknown payment provider")
	case errors.Is(err, payment.ErrPaymentNotFound):
		respondError(w, http.StatusNotFound, "not_found", "payment not found")
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
