package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponTypePercentage   CouponType = "PERCENTAGE"
	CouponTypeFixedAmount  CouponType = "FIXED_AMOUNT"
	CouponTypeFreeShipping CouponType = "FREE_SHIPPING"
)

type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "ACTIVE"
	CouponStatusDisabled CouponStatus = "DISABLED"
)

// Coupon constraints use pointers for absent bounds: a nil limit means
// unlimited, a nil window edge means unbounded on that side.
type Coupon struct {
	ID                int64            `json:"id"`
	Code              string           `json:"code"`
	Type              CouponType       `json:"type"`
	Status            CouponStatus     `json:"status"`
	DiscountValue     decimal.Decimal  `json:"discount_value"`
	MinPurchase       decimal.Decimal  `json:"min_purchase"`
	MaxDiscount       *decimal.Decimal `json:"max_discount,omitempty"`
	UsageLimit        *int             `json:"usage_limit,omitempty"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user,omitempty"`
	UsageCount        int              `json:"usage_count"`
	ValidFrom         *time.Time       `json:"valid_from,omitempty"`
	ValidUntil        *time.Time       `json:"valid_until,omitempty"`
	AllowedProducts   []int64          `json:"allowed_products,omitempty"`
	AllowedCategories []int64          `json:"allowed_categories,omitempty"`
}

// CouponRedemption is the durable audit record of one confirmed coupon
// application. It both enforces per-user limits and ties the discount to
// the order it was granted on. Written exactly once per successful order.
type CouponRedemption struct {
	ID             int64           `json:"id"`
	CouponID       int64           `json:"coupon_id"`
	UserID         string          `json:"user_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
