package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, order_id, provider, status, amount, intent_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW(), NOW())`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.OrderID,
		p.Provider,
		p.Status,
		p.Amount,
		p.IntentID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT id, order_id, provider, status, amount, COALESCE(intent_id, ''), created_at, updated_at
	          FROM payments WHERE id = $1`

	var p domain.Payment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.OrderID,
		&p.Provider,
		&p.Status,
		&p.Amount,
		&p.IntentID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by id: %w", err)
	}

	return &p, nil
}

func (r *PostgresRepository) SetIntentID(ctx context.Context, id uuid.UUID, intentID string) error {
	query := `UPDATE payments SET intent_id = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, intentID); err != nil {
		return fmt.Errorf("set intent id: %w", err)
	}
	return nil
}

// MarkTerminal is a conditional update guarded on PENDING: a replayed or
// concurrent webhook loses on rows-affected instead of flipping a terminal
// payment twice.
func (r *PostgresRepository) MarkTerminal(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (bool, error) {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, id, status, domain.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark payment terminal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment terminal rows affected: %w", err)
	}
	return rows > 0, nil
}
