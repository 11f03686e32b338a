package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mg-gouda/e-commerce-sub000/internal/order"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

// PostgresUnitOfWork scopes one checkout to one database transaction: the
// ledger decrements and the order rows commit together or not at all.
type PostgresUnitOfWork struct {
	db *sql.DB
}

func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

func (u *PostgresUnitOfWork) Do(ctx context.Context, fn func(tx order.Tx) error) (txErr error) {
	sqlTx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := sqlTx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	err = fn(order.Tx{
		Stock:  stock.NewPostgresLedgerWithTx(sqlTx),
		Orders: order.NewPostgresRepositoryWithTx(sqlTx),
	})
	if err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
