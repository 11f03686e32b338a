package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
	query := `SELECT product_id, quantity, added_at FROM cart_lines
	          WHERE owner_id = $1 ORDER BY added_at`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if len(lines) == 0 {
		return nil, ErrCartNotFound
	}

	return &domain.Cart{OwnerID: ownerID, Lines: lines}, nil
}

// UpsertLine inserts the line or, when the product is already in the cart,
// merges the quantities. One row per (owner, product) is enforced by the
// primary key.
func (s *PostgresStore) UpsertLine(ctx context.Context, ownerID string, line domain.CartLine) error {
	query := `INSERT INTO cart_lines (owner_id, product_id, quantity, added_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (owner_id, product_id)
	          DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`

	if _, err := s.db.ExecContext(ctx, query, ownerID, line.ProductID, line.Quantity); err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetLineQuantity(ctx context.Context, ownerID string, productID int64, quantity int32) error {
	query := `UPDATE cart_lines SET quantity = $3 WHERE owner_id = $1 AND product_id = $2`

	res, err := s.db.ExecContext(ctx, query, ownerID, productID, quantity)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart line rows affected: %w", err)
	}
	if rows == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteLine(ctx context.Context, ownerID string, productID int64) (bool, error) {
	query := `DELETE FROM cart_lines WHERE owner_id = $1 AND product_id = $2`

	res, err := s.db.ExecContext(ctx, query, ownerID, productID)
	if err != nil {
		return false, fmt.Errorf("delete cart line: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete cart line rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
