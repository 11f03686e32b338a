package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (domain.Coupon, error) {
	query := `SELECT id, code, type, status, discount_value, min_purchase, max_discount,
	                 usage_limit, usage_limit_per_user, usage_count, valid_from, valid_until,
	                 allowed_products, allowed_categories
	          FROM coupons WHERE LOWER(code) = LOWER($1)`

	var c domain.Coupon
	var maxDiscount decimal.NullDecimal
	var usageLimit, perUserLimit sql.NullInt64
	var validFrom, validUntil sql.NullTime
	var allowedProducts, allowedCategories pq.Int64Array
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&c.Type,
		&c.Status,
		&c.DiscountValue,
		&c.MinPurchase,
		&maxDiscount,
		&usageLimit,
		&perUserLimit,
		&c.UsageCount,
		&validFrom,
		&validUntil,
		&allowedProducts,
		&allowedCategories,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Coupon{}, ErrCouponNotFound
	}
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("query coupon by code: %w", err)
	}

	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Decimal
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		c.UsageLimit = &limit
	}
	if perUserLimit.Valid {
		limit := int(perUserLimit.Int64)
		c.UsageLimitPerUser = &limit
	}
	if validFrom.Valid {
		c.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		c.ValidUntil = &validUntil.Time
	}
	c.AllowedProducts = allowedProducts
	c.AllowedCategories = allowedCategories
	return c, nil
}

func (s *PostgresStore) CountRedemptions(ctx context.Context, couponID int64, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return count, nil
}

// Redeem increments usage_count only while under the global limit, so two
// concurrent redemptions cannot both claim the last slot, then records the
// redemption row. Both writes share one transaction.
func (s *PostgresStore) Redeem(ctx context.Context, redemption domain.CouponRedemption) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redeem tx: %w", err)
	}
	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE coupons SET usage_count = usage_count + 1
		 WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		redemption.CouponID)
	if err != nil {
		return fmt.Errorf("increment usage count: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment usage count rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUsageLimitReached
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO coupon_redemptions (coupon_id, user_id, order_id, discount_amount, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		redemption.CouponID,
		redemption.UserID,
		redemption.OrderID,
		redemption.DiscountAmount)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem tx: %w", err)
	}
	return nil
}
