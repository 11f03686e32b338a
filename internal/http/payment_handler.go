package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mg-gouda/e-commerce-sub000/internal/payment"
)

// SignatureHeader carries the provider's HMAC over the webhook body.
const SignatureHeader = "X-Webhook-Signature"

type PaymentHandler struct {
	machine       *payment.StateMachine
	webhookSecret []byte
	timeout       time.Duration
}

func NewPaymentHandler(machine *payment.StateMachine, webhookSecret []byte, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		machine:       machine,
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

type CreateIntentRequestDTO struct {
	Provider string `json:"provider"`
}

// POST /api/v1/orders/{order_id}/payment-intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req CreateIntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Provider == "" {
		req.Provider = "stub"
	}

	intent, err := h.machine.CreateIntent(ctx, orderID, req.Provider)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, intent)
}

// POST /webhooks/payment receives provider callbacks. The signature check
// comes before any parsing: an unsigned or tampered body is rejected with
// 401 and logged, never processed.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if err := payment.VerifySignature(h.webhookSecret, body, signature); err != nil {
		log.Printf("rejected webhook with bad signature from %s (request %s)", r.RemoteAddr, getRequestID(ctx))
		respondError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature verification failed")
		return
	}

	evt, err := payment.ParseEvent(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed webhook payload")
		return
	}

	if err := h.machine.HandleEvent(ctx, evt); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
