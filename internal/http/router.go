package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/order"
	"github.com/mg-gouda/e-commerce-sub000/internal/payment"
)

// RouterConfig bundles everything the HTTP surface needs.
type RouterConfig struct {
	Carts          cart.Store
	Orders         *order.Factory
	Payments       *payment.StateMachine
	WebhookSecret  []byte
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	cartHandler := NewCartHandler(cfg.Carts, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Carts, cfg.Orders, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)
	paymentHandler := NewPaymentHandler(cfg.Payments, cfg.WebhookSecret, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Webhooks authenticate by signature, not by shopper identity.
	r.Post("/webhooks/payment", paymentHandler.Webhook)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdentityMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Post("/checkout", checkoutHandler.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
			r.Put("/{order_id}/status", ordersHandler.UpdateStatus)
			r.Post("/{order_id}/payment-intent", paymentHandler.CreateIntent)
		})
	})

	return r
}
