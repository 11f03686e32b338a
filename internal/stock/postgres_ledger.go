package stock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the ledger can run
// standalone or inside the checkout transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresLedger struct {
	db querier
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func NewPostgresLedgerWithTx(tx *sql.Tx) *PostgresLedger {
	return &PostgresLedger{db: tx}
}

func (l *PostgresLedger) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	query := `SELECT id, name, price, stock, category_id FROM products WHERE id = $1`

	var p domain.Product
	err := l.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.Stock,
		&p.CategoryID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}

	return p, nil
}

// Reserve is a single conditional update verified by rows-affected, not a
// read-then-write pair. Concurrent reservations for the same product race
// on the WHERE clause and the loser fails cleanly.
func (l *PostgresLedger) Reserve(ctx context.Context, productID int64, quantity int32) error {
	query := `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	res, err := l.db.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing updated: either the product is gone or the stock is short.
	if _, err := l.GetProduct(ctx, productID); err != nil {
		return err
	}
	return InsufficientStockError{ProductID: productID}
}
