package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresRepository struct {
	db querier
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func NewPostgresRepositoryWithTx(tx *sql.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (id, owner_id, status, subtotal, discount, total, coupon_code, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		o.ID,
		o.OwnerID,
		o.Status,
		o.Subtotal,
		o.Discount,
		o.Total,
		o.CouponCode)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range o.Lines {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4)`,
			o.ID, line.ProductID, line.Quantity, line.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, owner_id, status, subtotal, discount, total, COALESCE(coupon_code, ''), created_at, updated_at
	          FROM orders WHERE id = $1`

	var o domain.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.OwnerID,
		&o.Status,
		&o.Subtotal,
		&o.Discount,
		&o.Total,
		&o.CouponCode,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	lines, err := r.orderLines(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines

	return &o, nil
}

func (r *PostgresRepository) ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	query := `SELECT id, owner_id, status, subtotal, discount, total, COALESCE(coupon_code, ''), created_at, updated_at
	          FROM orders WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by owner: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.OwnerID,
			&o.Status,
			&o.Subtotal,
			&o.Discount,
			&o.Total,
			&o.CouponCode,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, o := range orders {
		lines, err := r.orderLines(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Lines = lines
	}

	return orders, nil
}

func (r *PostgresRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	query := `UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("advance order status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance order status rows affected: %w", err)
	}
	if rows == 0 {
		// Either the order is gone or a concurrent writer moved it first.
		if _, err := r.GetOrder(ctx, id); err != nil {
			return err
		}
		return ErrIllegalTransition
	}
	return nil
}

func (r *PostgresRepository) orderLines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, quantity, unit_price FROM order_lines WHERE order_id = $1 ORDER BY product_id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}
