package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

type CartHandler struct {
	carts   cart.Store
	timeout time.Duration
}

func NewCartHandler(carts cart.Store, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int32 `json:"quantity"`
}

func (h *CartHandler) resolve(ctx context.Context) (*domain.Cart, error) {
	return h.carts.Resolve(ctx, getOwnerID(ctx), getSessionID(ctx))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.resolve(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	c, err := h.resolve(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.carts.AddLine(ctx, c, req.ProductID, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	c, err := h.resolve(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.carts.UpdateLine(ctx, c, productID, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	c, err := h.resolve(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.carts.RemoveLine(ctx, c, productID); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.resolve(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.carts.Clear(ctx, c); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
