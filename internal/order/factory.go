package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/coupon"
	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
	"github.com/mg-gouda/e-commerce-sub000/internal/notify"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

const retryBackoff = 100 * time.Millisecond

// Factory turns a resolved cart into an immutable order: it snapshots
// prices, reserves stock, applies a coupon, and persists everything as one
// all-or-nothing transaction.
type Factory struct {
	carts    cart.Store
	uow      UnitOfWork
	orders   Repository
	coupons  *coupon.Engine
	notifier notify.Notifier

	backoff time.Duration
}

func NewFactory(carts cart.Store, uow UnitOfWork, orders Repository, coupons *coupon.Engine, notifier notify.Notifier) *Factory {
	return &Factory{
		carts:    carts,
		uow:      uow,
		orders:   orders,
		coupons:  coupons,
		notifier: notifier,
		backoff:  retryBackoff,
	}
}

// CreateOrder runs the checkout pipeline of one cart. Until the commit,
// any failure leaves stock, cart and coupon usage untouched; after it, the
// cart is cleared, the coupon redeemed and the collaborator notified.
func (f *Factory) CreateOrder(ctx context.Context, c *domain.Cart, couponCode string) (*domain.Order, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	o, applied, err := f.createOrderTx(ctx, c, couponCode)
	if err != nil && isTransient(err) {
		// One retry with backoff for transient store errors; domain
		// failures (insufficient stock, invalid coupon) are final.
		log.Printf("order creation failed, retrying once: %v", err)
		time.Sleep(f.backoff)
		o, applied, err = f.createOrderTx(ctx, c, couponCode)
	}
	if err != nil {
		return nil, err
	}

	f.finalize(ctx, c, o, applied)
	return o, nil
}

func (f *Factory) createOrderTx(ctx context.Context, c *domain.Cart, couponCode string) (*domain.Order, *domain.Coupon, error) {
	var created *domain.Order
	var applied *domain.Coupon

	err := f.uow.Do(ctx, func(tx Tx) error {
		subtotal := decimal.Zero
		lines := make([]domain.OrderLine, 0, len(c.Lines))
		productIDs := make([]int64, 0, len(c.Lines))
		categoryIDs := make([]int64, 0, len(c.Lines))

		// Price and availability are read before anything is mutated so an
		// obviously short line aborts the attempt up front.
		for _, cl := range c.Lines {
			p, err := tx.Stock.GetProduct(ctx, cl.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < cl.Quantity {
				return stock.InsufficientStockError{ProductID: cl.ProductID}
			}

			line := domain.OrderLine{
				ProductID: cl.ProductID,
				Quantity:  cl.Quantity,
				UnitPrice: p.Price,
			}
			lines = append(lines, line)
			subtotal = subtotal.Add(line.Subtotal())
			productIDs = append(productIDs, p.ID)
			categoryIDs = append(categoryIDs, p.CategoryID)
		}
		subtotal = domain.Round2(subtotal)

		// The authoritative check: atomic decrements, all lines or none.
		for _, line := range lines {
			if err := tx.Stock.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		discount := decimal.Zero
		total := subtotal
		if couponCode != "" {
			res, err := f.coupons.Validate(ctx, couponCode, subtotal, productIDs, categoryIDs, identity(c))
			if err != nil {
				return fmt.Errorf("coupons.Validate: %w", err)
			}
			if !res.Valid {
				return coupon.InvalidCouponError{Reason: res.Reason}
			}
			discount = res.Discount
			total = res.FinalAmount
			applied = res.Coupon
		}

		o := &domain.Order{
			ID:         uuid.New(),
			OwnerID:    identity(c),
			Status:     domain.OrderStatusPending,
			Lines:      lines,
			Subtotal:   subtotal,
			Discount:   discount,
			Total:      total,
			CouponCode: couponCode,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		if err := tx.Orders.CreateOrder(ctx, o); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return created, applied, nil
}

// finalize runs the post-commit steps. The order already exists, so
// failures here must not undo it: they are logged and absorbed.
func (f *Factory) finalize(ctx context.Context, c *domain.Cart, o *domain.Order, applied *domain.Coupon) {
	if err := f.carts.Clear(ctx, c); err != nil {
		log.Printf("failed to clear cart after order %s: %v", o.ID, err)
	}

	if applied != nil {
		if err := f.coupons.Redeem(ctx, domain.CouponRedemption{
			CouponID:       applied.ID,
			UserID:         o.OwnerID,
			OrderID:        o.ID,
			DiscountAmount: o.Discount,
		}); err != nil {
			log.Printf("failed to redeem coupon %q for order %s: %v", o.CouponCode, o.ID, err)
		}
	}

	f.notifier.Notify(ctx, "order_created", map[string]any{
		"order_id": o.ID.String(),
		"owner_id": o.OwnerID,
		"status":   string(o.Status),
		"total":    o.Total.StringFixed(2),
	})
}

// GetOrder exposes the read side for transports and the payment flow.
func (f *Factory) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return f.orders.GetOrder(ctx, id)
}

func (f *Factory) ListOrders(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	return f.orders.ListOrdersByOwner(ctx, ownerID)
}

// AdvanceStatus moves an order forward (operator or payment action) and
// notifies on every transition. Orders never return to PENDING.
func (f *Factory) AdvanceStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	o, err := f.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(o.Status, next) {
		return nil, ErrIllegalTransition
	}
	if err := f.orders.AdvanceStatus(ctx, id, o.Status, next); err != nil {
		return nil, err
	}
	o.Status = next

	f.notifier.Notify(ctx, "order_status_changed", map[string]any{
		"order_id": o.ID.String(),
		"owner_id": o.OwnerID,
		"status":   string(o.Status),
	})
	return o, nil
}

// identity is the id coupon limits and orders are attributed to: the owner
// for authenticated carts, the session for guest carts.
func identity(c *domain.Cart) string {
	if c.OwnerID != "" {
		return c.OwnerID
	}
	return c.SessionID
}

func isTransient(err error) bool {
	var insufficientErr stock.InsufficientStockError
	var invalidCouponErr coupon.InvalidCouponError
	switch {
	case errors.As(err, &insufficientErr),
		errors.As(err, &invalidCouponErr),
		errors.Is(err, stock.ErrProductNotFound),
		errors.Is(err, ErrEmptyCart):
		return false
	}
	return true
}
