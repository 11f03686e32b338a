package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// Validation failure reasons surfaced to the client.
const (
	ReasonNotFound      = "coupon not found"
	ReasonNotActive     = "coupon is not active"
	ReasonNotYetValid   = "coupon is not yet valid"
	ReasonExpired       = "coupon has expired"
	ReasonUsageLimit    = "coupon usage limit reached"
	ReasonPerUserLimit  = "coupon usage limit reached for this user"
	ReasonBelowMinimum  = "cart total is below the minimum purchase amount"
	ReasonNotApplicable = "coupon does not apply to any item in the cart"
)

// InvalidCouponError carries the validation failure reason.
type InvalidCouponError struct {
	Reason string
}

func (e InvalidCouponError) Error() string {
	return fmt.Sprintf("invalid coupon: %s", e.Reason)
}

// Result of a validation. When Valid is false, Reason holds the first
// failed check; Discount and FinalAmount are only meaningful when valid.
type Result struct {
	Valid       bool
	Reason      string
	Coupon      *domain.Coupon
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
}

// Engine validates coupon codes against a cart snapshot. Validation is
// side-effect free; redemption is a separate, explicit step.
type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Validate checks the code against the cart snapshot and computes the
// discount. Checks run in a fixed order and the first failure wins.
func (e *Engine) Validate(ctx context.Context, code string, cartTotal decimal.Decimal, productIDs, categoryIDs []int64, userID string) (Result, error) {
	c, err := e.store.GetByCode(ctx, code)
	if errors.Is(err, ErrCouponNotFound) {
		return invalid(ReasonNotFound), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("store.GetByCode: %w", err)
	}

	userRedemptions := 0
	if c.UsageLimitPerUser != nil && userID != "" {
		userRedemptions, err = e.store.CountRedemptions(ctx, c.ID, userID)
		if err != nil {
			return Result{}, fmt.Errorf("store.CountRedemptions: %w", err)
		}
	}

	return evaluate(c, userRedemptions, e.now(), cartTotal, productIDs, categoryIDs), nil
}

// Redeem records the confirmed application of a coupon on an order.
func (e *Engine) Redeem(ctx context.Context, redemption domain.CouponRedemption) error {
	if err := e.store.Redeem(ctx, redemption); err != nil {
		return fmt.Errorf("store.Redeem: %w", err)
	}
	return nil
}

// evaluate is the pure validation core: coupon state plus cart snapshot in,
// verdict out. No clocks, no stores.
func evaluate(c domain.Coupon, userRedemptions int, now time.Time, cartTotal decimal.Decimal, productIDs, categoryIDs []int64) Result {
	if c.Status != domain.CouponStatusActive {
		return invalid(ReasonNotActive)
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return invalid(ReasonNotYetValid)
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return invalid(ReasonExpired)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return invalid(ReasonUsageLimit)
	}
	if c.UsageLimitPerUser != nil && userRedemptions >= *c.UsageLimitPerUser {
		return invalid(ReasonPerUserLimit)
	}
	if cartTotal.LessThan(c.MinPurchase) {
		return invalid(ReasonBelowMinimum)
	}
	// OR-match: one matching item in the cart is enough, the coupon does
	// not require every item to qualify.
	if len(c.AllowedCategories) > 0 && !intersects(c.AllowedCategories, categoryIDs) {
		return invalid(ReasonNotApplicable)
	}
	if len(c.AllowedProducts) > 0 && !intersects(c.AllowedProducts, productIDs) {
		return invalid(ReasonNotApplicable)
	}

	discount := computeDiscount(c, cartTotal)
	final := domain.Round2(decimal.Max(decimal.Zero, cartTotal.Sub(discount)))

	return Result{
		Valid:       true,
		Coupon:      &c,
		Discount:    discount,
		FinalAmount: final,
	}
}

func computeDiscount(c domain.Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch c.Type {
	case domain.CouponTypePercentage:
		discount = cartTotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
	case domain.CouponTypeFixedAmount:
		discount = decimal.Min(c.DiscountValue, cartTotal)
	case domain.CouponTypeFreeShipping:
		// Shipping is priced outside the merchandise total; no discount here.
		discount = decimal.Zero
	}

	return domain.Round2(discount)
}

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

func intersects(allowed, present []int64) bool {
	set := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	for _, id := range present {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
