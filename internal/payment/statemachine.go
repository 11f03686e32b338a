package payment

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
	"github.com/mg-gouda/e-commerce-sub000/internal/notify"
)

// OrderAdvancer is the slice of the order side the payment flow needs:
// read an order and advance its status. Implemented by order.Factory.
type OrderAdvancer interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
}

// Intent is what the client needs to complete a payment it just requested.
type Intent struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	IntentID     string    `json:"intent_id"`
	ClientSecret string    `json:"client_secret"`
}

// StateMachine drives Payment rows through PENDING -> {PAID, FAILED} and
// reconciles asynchronous provider callbacks against Order and Payment
// records. Replayed events are safe no-ops.
type StateMachine struct {
	payments  Repository
	orders    OrderAdvancer
	providers map[string]Provider
	notifier  notify.Notifier

	handlers map[EventType]func(ctx context.Context, evt Event) error
}

func NewStateMachine(payments Repository, orders OrderAdvancer, providers map[string]Provider, notifier notify.Notifier) *StateMachine {
	sm := &StateMachine{
		payments:  payments,
		orders:    orders,
		providers: providers,
		notifier:  notifier,
	}
	sm.handlers = map[EventType]func(ctx context.Context, evt Event) error{
		EventPaymentSucceeded: sm.onSucceeded,
		EventPaymentFailed:    sm.onFailed,
	}
	return sm
}

// CreateIntent registers a payment attempt with the external provider. Only
// legal while the order is still PENDING; the intent is tagged with
// {order_id, payment_id} so the webhook can be correlated back.
func (sm *StateMachine) CreateIntent(ctx context.Context, orderID uuid.UUID, providerName string) (*Intent, error) {
	provider, ok := sm.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	o, err := sm.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	p := &domain.Payment{
		ID:       uuid.New(),
		OrderID:  o.ID,
		Provider: providerName,
		Status:   domain.PaymentStatusPending,
		Amount:   o.Total,
	}
	if err := sm.payments.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("payments.CreatePayment: %w", err)
	}

	metadata := map[string]string{
		"order_id":   o.ID.String(),
		"payment_id": p.ID.String(),
	}
	clientSecret, intentID, err := provider.CreateIntent(ctx, domain.MinorUnits(o.Total), metadata)
	if err != nil {
		if _, markErr := sm.payments.MarkTerminal(ctx, p.ID, domain.PaymentStatusFailed); markErr != nil {
			log.Printf("failed to mark payment %s failed after intent error: %v", p.ID, markErr)
		}
		return nil, fmt.Errorf("provider.CreateIntent: %w", err)
	}

	if err := sm.payments.SetIntentID(ctx, p.ID, intentID); err != nil {
		return nil, fmt.Errorf("payments.SetIntentID: %w", err)
	}

	return &Intent{
		PaymentID:    p.ID,
		IntentID:     intentID,
		ClientSecret: clientSecret,
	}, nil
}

// HandleEvent dispatches a verified provider event. Unrecognized event
// types are logged and ignored.
func (sm *StateMachine) HandleEvent(ctx context.Context, evt Event) error {
	handler, ok := sm.handlers[evt.Type]
	if !ok {
		log.Printf("ignoring unrecognized webhook event type %q (event id %s)", evt.Type, evt.ID)
		return nil
	}
	return handler(ctx, evt)
}

func (sm *StateMachine) onSucceeded(ctx context.Context, evt Event) error {
	p, err := sm.loadPayment(ctx, evt)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() {
		log.Printf("replayed %s for terminal payment %s, ignoring", evt.Type, p.ID)
		return nil
	}

	updated, err := sm.payments.MarkTerminal(ctx, p.ID, domain.PaymentStatusPaid)
	if err != nil {
		return fmt.Errorf("payments.MarkTerminal: %w", err)
	}
	if !updated {
		// A concurrent delivery of the same event got there first.
		return nil
	}

	if _, err := sm.orders.AdvanceStatus(ctx, p.OrderID, domain.OrderStatusProcessing); err != nil {
		log.Printf("payment %s paid but order %s did not advance: %v", p.ID, p.OrderID, err)
	}

	sm.notifier.Notify(ctx, "payment_success", map[string]any{
		"order_id":   p.OrderID.String(),
		"payment_id": p.ID.String(),
		"intent_id":  evt.IntentID,
		"amount":     p.Amount.StringFixed(2),
	})
	return nil
}

func (sm *StateMachine) onFailed(ctx context.Context, evt Event) error {
	p, err := sm.loadPayment(ctx, evt)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() {
		log.Printf("replayed %s for terminal payment %s, ignoring", evt.Type, p.ID)
		return nil
	}

	updated, err := sm.payments.MarkTerminal(ctx, p.ID, domain.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("payments.MarkTerminal: %w", err)
	}
	if !updated {
		return nil
	}

	// The order stays PENDING: the shopper can retry with a new payment.
	sm.notifier.Notify(ctx, "payment_failed", map[string]any{
		"order_id":   p.OrderID.String(),
		"payment_id": p.ID.String(),
		"intent_id":  evt.IntentID,
	})
	return nil
}

func (sm *StateMachine) loadPayment(ctx context.Context, evt Event) (*domain.Payment, error) {
	paymentID, err := uuid.Parse(evt.Metadata.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("event %s has malformed payment id %q: %w", evt.ID, evt.Metadata.PaymentID, err)
	}

	p, err := sm.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payments.GetPayment: %w", err)
	}
	return p, nil
}
