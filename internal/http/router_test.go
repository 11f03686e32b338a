package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/coupon"
	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
	"github.com/mg-gouda/e-commerce-sub000/internal/notify"
	"github.com/mg-gouda/e-commerce-sub000/internal/order"
	"github.com/mg-gouda/e-commerce-sub000/internal/payment"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

var testWebhookSecret = []byte("whsec_test")

type memDurable struct {
	mu    sync.Mutex
	lines map[string]map[int64]domain.CartLine
}

func newMemDurable() *memDurable {
	return &memDurable{lines: make(map[string]map[int64]domain.CartLine)}
}

func (m *memDurable) Get(_ context.Context, ownerID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byProduct, exists := m.lines[ownerID]
	if !exists || len(byProduct) == 0 {
		return nil, cart.ErrCartNotFound
	}
	c := &domain.Cart{OwnerID: ownerID}
	for _, line := range byProduct {
		c.Lines = append(c.Lines, line)
	}
	return c, nil
}

func (m *memDurable) UpsertLine(_ context.Context, ownerID string, line domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines[ownerID] == nil {
		m.lines[ownerID] = make(map[int64]domain.CartLine)
	}
	if existing, ok := m.lines[ownerID][line.ProductID]; ok {
		existing.Quantity += line.Quantity
		m.lines[ownerID][line.ProductID] = existing
		return nil
	}
	m.lines[ownerID][line.ProductID] = line
	return nil
}

func (m *memDurable) SetLineQuantity(_ context.Context, ownerID string, productID int64, quantity int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[ownerID][productID]
	if !ok {
		return cart.ErrCartLineNotFound
	}
	line.Quantity = quantity
	m.lines[ownerID][productID] = line
	return nil
}

func (m *memDurable) DeleteLine(_ context.Context, ownerID string, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[ownerID][productID]; !ok {
		return false, nil
	}
	delete(m.lines[ownerID], productID)
	return true, nil
}

func (m *memDurable) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, ownerID)
	return nil
}

type serverFixture struct {
	server   *httptest.Server
	client   *http.Client
	ledger   *stock.MemoryLedger
	orders   *order.MemoryRepository
	payments *payment.MemoryRepository
	coupons  *coupon.MemoryStore
}

func newServerFixture(t *testing.T) *serverFixture {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	ledger := stock.NewMemoryLedger()
	ledger.SetProduct(domain.Product{ID: 1, Name: "alpha", Price: decimal.RequireFromString("10.00"), Stock: 5, CategoryID: 1})
	ledger.SetProduct(domain.Product{ID: 2, Name: "beta", Price: decimal.RequireFromString("5.00"), Stock: 2, CategoryID: 1})

	resolver := cart.NewResolver(newMemDurable(), cart.NewRedisGuestStore(redisClient), ledger)

	ordersRepo := order.NewMemoryRepository()
	uow := order.NewMemoryUnitOfWork(ledger, ordersRepo)

	couponStore := coupon.NewMemoryStore()
	couponStore.SetCoupon(domain.Coupon{
		ID:            1,
		Code:          "SAVE10",
		Type:          domain.CouponTypePercentage,
		Status:        domain.CouponStatusActive,
		DiscountValue: decimal.NewFromInt(10),
	})

	factory := order.NewFactory(resolver, uow, ordersRepo, coupon.NewEngine(couponStore), notify.Noop{})

	paymentsRepo := payment.NewMemoryRepository()
	machine := payment.NewStateMachine(
		paymentsRepo,
		factory,
		map[string]payment.Provider{"stub": payment.StubProvider{}},
		notify.Noop{},
	)

	router := NewRouter(RouterConfig{
		Carts:          resolver,
		Orders:         factory,
		Payments:       machine,
		WebhookSecret:  testWebhookSecret,
		RequestTimeout: 5 * time.Second,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &serverFixture{
		server:   server,
		client:   &http.Client{Jar: jar},
		ledger:   ledger,
		orders:   ordersRepo,
		payments: paymentsRepo,
		coupons:  couponStore,
	}
}

func (fx *serverFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, fx.server.URL+path, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := fx.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetCart_MintsSessionCookie(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	c := decode[domain.Cart](t, resp)
	assert.Empty(t, c.Lines)
}

func TestAddItem_Validation(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 0, Quantity: 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 404, Quantity: 1}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Product 2 only has 2 in stock.
	resp = fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 3}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, "insufficient_stock", errResp.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodPost, "/api/v1/checkout", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, "empty_cart", errResp.Code)
}

func TestCheckout_InvalidCoupon(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{CouponCode: "NOPE"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_coupon", errResp.Code)

	// Nothing was reserved for the failed checkout.
	p, err := fx.ledger.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(5), p.Stock)
}

// The full shopper journey over HTTP: build a cart as a guest, check out
// with a coupon, request a payment intent and settle it through the signed
// webhook.
func TestCheckoutAndPaymentFlow(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 1}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{CouponCode: "SAVE10"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decode[domain.Order](t, resp)

	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("25.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Discount.Equal(decimal.RequireFromString("2.50")), "discount %s", o.Discount)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("22.50")), "total %s", o.Total)

	// The cart was cleared by the checkout.
	resp = fx.do(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[domain.Cart](t, resp)
	assert.Empty(t, c.Lines)

	// The order is visible to its owner.
	resp = fx.do(t, http.MethodGet, "/api/v1/orders/"+o.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/payment-intent", o.ID), nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	intent := decode[payment.Intent](t, resp)
	assert.NotEmpty(t, intent.IntentID)
	assert.NotEmpty(t, intent.ClientSecret)

	// A second intent on the still-pending order is fine; after payment it
	// is not, which the replay below exercises.
	event := payment.Event{
		ID:       "evt_1",
		Type:     payment.EventPaymentSucceeded,
		IntentID: intent.IntentID,
		Metadata: payment.EventMetadata{
			OrderID:   o.ID.String(),
			PaymentID: intent.PaymentID.String(),
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, fx.server.URL+"/webhooks/payment", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(SignatureHeader, payment.Sign(testWebhookSecret, payload))
	whResp, err := fx.client.Do(req)
	require.NoError(t, err)
	whResp.Body.Close()
	require.Equal(t, http.StatusOK, whResp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/api/v1/orders/"+o.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[domain.Order](t, resp)
	assert.Equal(t, domain.OrderStatusProcessing, paid.Status)

	// Replaying the same delivery changes nothing.
	req, err = http.NewRequest(http.MethodPost, fx.server.URL+"/webhooks/payment", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(SignatureHeader, payment.Sign(testWebhookSecret, payload))
	whResp, err = fx.client.Do(req)
	require.NoError(t, err)
	whResp.Body.Close()
	require.Equal(t, http.StatusOK, whResp.StatusCode)

	// A new intent on the now-processing order is rejected.
	resp = fx.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/payment-intent", o.ID), nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWebhook_BadSignature(t *testing.T) {
	fx := newServerFixture(t)

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	req, err := http.NewRequest(http.MethodPost, fx.server.URL+"/webhooks/payment", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(SignatureHeader, "deadbeef")

	resp, err := fx.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetOrder_NotYoursLooksMissing(t *testing.T) {
	fx := newServerFixture(t)

	// An order owned by someone else entirely.
	resp := fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1},
		map[string]string{"X-User-ID": "user-A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = fx.do(t, http.MethodPost, "/api/v1/checkout", nil,
		map[string]string{"X-User-ID": "user-A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decode[domain.Order](t, resp)

	resp = fx.do(t, http.MethodGet, "/api/v1/orders/"+o.ID.String(), nil,
		map[string]string{"X-User-ID": "user-B"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil,
		map[string]string{"X-User-ID": "user-B"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", nil,
		map[string]string{"X-User-ID": "user-B"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateStatus(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1},
		map[string]string{"X-User-ID": "user-A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = fx.do(t, http.MethodPost, "/api/v1/checkout", nil,
		map[string]string{"X-User-ID": "user-A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decode[domain.Order](t, resp)

	statusPath := fmt.Sprintf("/api/v1/orders/%s/status", o.ID)

	resp = fx.do(t, http.MethodPut, statusPath, UpdateStatusRequestDTO{Status: "TELEPORTED"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, statusPath, UpdateStatusRequestDTO{Status: "PROCESSING"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Order](t, resp)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)

	// Backwards is never legal.
	resp = fx.do(t, http.MethodPut, statusPath, UpdateStatusRequestDTO{Status: "PENDING"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, statusPath, UpdateStatusRequestDTO{Status: "DELIVERED"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Terminal orders do not move again.
	resp = fx.do(t, http.MethodPut, statusPath, UpdateStatusRequestDTO{Status: "CANCELLED"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 4}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[domain.Cart](t, resp)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, int32(4), c.Lines[0].Quantity)

	resp = fx.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodDelete, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c = decode[domain.Cart](t, resp)
	assert.Empty(t, c.Lines)
}
