package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// statusRank orders the forward progression of an order. CANCELLED is
// reachable from any non-terminal state and handled separately.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether an order may advance from s to next.
// Status only moves forward; nothing ever returns to PENDING.
func CanTransitionTo(s, next OrderStatus) bool {
	if s == next || s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderLine is a snapshot of a cart line at order time. UnitPrice is
// captured once and never recomputed from the live product price.
type OrderLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Order is immutable once created except for Status.
// Invariant: Total == Subtotal - Discount == Σ(line subtotals) - Discount.
type Order struct {
	ID         uuid.UUID       `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Status     OrderStatus     `json:"status"`
	Lines      []OrderLine     `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
