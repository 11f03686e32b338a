package coupon

import (
	"context"
	"errors"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrUsageLimitReached is returned by Redeem when the atomic
	// increment-if-under-limit loses the race for the last redemption.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

type Store interface {
	// GetByCode looks a coupon up by its case-insensitive code.
	GetByCode(ctx context.Context, code string) (domain.Coupon, error)

	// CountRedemptions returns how many times the user has redeemed the coupon.
	CountRedemptions(ctx context.Context, couponID int64, userID string) (int, error)

	// Redeem atomically increments usage_count (only while under the global
	// limit) and records the redemption. Called once per successful order,
	// after the order is durably created, never during validation.
	Redeem(ctx context.Context, redemption domain.CouponRedemption) error
}
