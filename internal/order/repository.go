package order

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to order")
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

type Repository interface {
	// CreateOrder persists the order and its line snapshots.
	CreateOrder(ctx context.Context, o *domain.Order) error

	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)

	// AdvanceStatus moves the order from one status to another as a
	// conditional update; it fails with ErrIllegalTransition when the
	// order is no longer in the expected from status.
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

// Tx bundles the repositories whose writes must commit together during
// order creation: every stock reservation and the order row itself are one
// all-or-nothing unit.
type Tx struct {
	Stock  stock.Ledger
	Orders Repository
}

type UnitOfWork interface {
	// Do runs fn inside one transaction. Any error from fn rolls
	// everything back; a nil return commits.
	Do(ctx context.Context, fn func(tx Tx) error) error
}
