package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (m *mockPaymentRepo) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) GetPayment(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, exists := m.payments[id]
	if !exists {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) SetIntentID(_ context.Context, id uuid.UUID, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, exists := m.payments[id]
	if !exists {
		return ErrPaymentNotFound
	}
	p.IntentID = intentID
	return nil
}

func (m *mockPaymentRepo) MarkTerminal(_ context.Context, id uuid.UUID, status domain.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, exists := m.payments[id]
	if !exists {
		return false, ErrPaymentNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

type mockOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newMockOrders(orders ...*domain.Order) *mockOrders {
	m := &mockOrders{orders: make(map[uuid.UUID]*domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrders) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, exists := m.orders[id]
	if !exists {
		return nil, errors.New("order not found")
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) AdvanceStatus(_ context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, exists := m.orders[id]
	if !exists {
		return nil, errors.New("order not found")
	}
	o.Status = next
	cp := *o
	return &cp, nil
}

type countingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *countingNotifier) Notify(_ context.Context, eventType string, _ map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *countingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type failingProvider struct{}

func (failingProvider) CreateIntent(context.Context, int64, map[string]string) (string, string, error) {
	return "", "", errors.New("provider unavailable")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type smFixture struct {
	sm       *StateMachine
	payments *mockPaymentRepo
	orders   *mockOrders
	notifier *countingNotifier
	order    *domain.Order
}

func newSMFixture(status domain.OrderStatus) *smFixture {
	o := &domain.Order{
		ID:      uuid.New(),
		OwnerID: "user-1",
		Status:  status,
		Total:   dec("22.50"),
	}
	payments := newMockPaymentRepo()
	orders := newMockOrders(o)
	notifier := &countingNotifier{}
	sm := NewStateMachine(payments, orders, map[string]Provider{"stub": StubProvider{}}, notifier)

	return &smFixture{sm: sm, payments: payments, orders: orders, notifier: notifier, order: o}
}

func succeededEvent(fx *smFixture, paymentID uuid.UUID) Event {
	return Event{
		ID:       "evt-1",
		Type:     EventPaymentSucceeded,
		IntentID: "pi_test",
		Metadata: EventMetadata{
			OrderID:   fx.order.ID.String(),
			PaymentID: paymentID.String(),
		},
	}
}

func TestCreateIntent(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)

	intent, err := fx.sm.CreateIntent(context.Background(), fx.order.ID, "stub")
	require.NoError(t, err)

	assert.NotEmpty(t, intent.ClientSecret)
	assert.NotEmpty(t, intent.IntentID)

	p, err := fx.payments.GetPayment(context.Background(), intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, p.Status)
	assert.True(t, p.Amount.Equal(dec("22.50")))
	assert.Equal(t, intent.IntentID, p.IntentID)
}

func TestCreateIntent_OrderNotPending(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusProcessing)

	_, err := fx.sm.CreateIntent(context.Background(), fx.order.ID, "stub")
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestCreateIntent_UnknownProvider(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)

	_, err := fx.sm.CreateIntent(context.Background(), fx.order.ID, "acme-pay")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCreateIntent_ProviderFailureMarksPaymentFailed(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)
	fx.sm.providers["stub"] = failingProvider{}

	_, err := fx.sm.CreateIntent(context.Background(), fx.order.ID, "stub")
	require.Error(t, err)

	// The single payment row created for the attempt ends up FAILED.
	require.Len(t, fx.payments.payments, 1)
	for _, p := range fx.payments.payments {
		assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	}
}

func TestHandleEvent_Success(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)
	ctx := context.Background()

	intent, err := fx.sm.CreateIntent(ctx, fx.order.ID, "stub")
	require.NoError(t, err)

	require.NoError(t, fx.sm.HandleEvent(ctx, succeededEvent(fx, intent.PaymentID)))

	p, err := fx.payments.GetPayment(ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)

	o, err := fx.orders.GetOrder(ctx, fx.order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)

	assert.Equal(t, []string{"payment_success"}, fx.notifier.Events())
}

// Replaying the same success event must be a no-op: state unchanged and
// exactly one notification in total.
func TestHandleEvent_ReplayIsIdempotent(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)
	ctx := context.Background()

	intent, err := fx.sm.CreateIntent(ctx, fx.order.ID, "stub")
	require.NoError(t, err)

	evt := succeededEvent(fx, intent.PaymentID)
	require.NoError(t, fx.sm.HandleEvent(ctx, evt))
	require.NoError(t, fx.sm.HandleEvent(ctx, evt))

	p, err := fx.payments.GetPayment(ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)

	o, err := fx.orders.GetOrder(ctx, fx.order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)

	assert.Equal(t, []string{"payment_success"}, fx.notifier.Events())
}

func TestHandleEvent_Failure(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)
	ctx := context.Background()

	intent, err := fx.sm.CreateIntent(ctx, fx.order.ID, "stub")
	require.NoError(t, err)

	evt := succeededEvent(fx, intent.PaymentID)
	evt.Type = EventPaymentFailed
	require.NoError(t, fx.sm.HandleEvent(ctx, evt))

	p, err := fx.payments.GetPayment(ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)

	// The order stays PENDING so the shopper can retry.
	o, err := fx.orders.GetOrder(ctx, fx.order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status)

	assert.Equal(t, []string{"payment_failed"}, fx.notifier.Events())
}

// A failure arriving after a success must not flip the terminal state.
func TestHandleEvent_FailureAfterSuccessIsIgnored(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)
	ctx := context.Background()

	intent, err := fx.sm.CreateIntent(ctx, fx.order.ID, "stub")
	require.NoError(t, err)

	require.NoError(t, fx.sm.HandleEvent(ctx, succeededEvent(fx, intent.PaymentID)))

	late := succeededEvent(fx, intent.PaymentID)
	late.Type = EventPaymentFailed
	require.NoError(t, fx.sm.HandleEvent(ctx, late))

	p, err := fx.payments.GetPayment(ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)

	err := fx.sm.HandleEvent(context.Background(), Event{
		ID:   "evt-2",
		Type: "customer.created",
	})
	assert.NoError(t, err)
	assert.Empty(t, fx.notifier.Events())
}

func TestHandleEvent_MalformedPaymentID(t *testing.T) {
	fx := newSMFixture(domain.OrderStatusPending)

	err := fx.sm.HandleEvent(context.Background(), Event{
		ID:       "evt-3",
		Type:     EventPaymentSucceeded,
		Metadata: EventMetadata{PaymentID: "not-a-uuid"},
	})
	assert.Error(t, err)
}
