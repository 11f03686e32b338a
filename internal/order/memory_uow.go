package order

import (
	"context"
	"sync"

	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

// MemoryUnitOfWork gives the factory transactional semantics without a
// database: fn runs against cloned state, and only a nil return copies the
// clones back. An error throws the whole scope away, so partial stock
// decrements never survive a failed order attempt.
type MemoryUnitOfWork struct {
	mu     sync.Mutex
	Ledger *stock.MemoryLedger
	Orders *MemoryRepository
}

func NewMemoryUnitOfWork(ledger *stock.MemoryLedger, orders *MemoryRepository) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{
		Ledger: ledger,
		Orders: orders,
	}
}

func (u *MemoryUnitOfWork) Do(_ context.Context, fn func(tx Tx) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	ledger := u.Ledger.Clone()
	orders := u.Orders.Clone()

	if err := fn(Tx{Stock: ledger, Orders: orders}); err != nil {
		return err
	}

	u.Ledger.ReplaceFrom(ledger)
	u.Orders.ReplaceFrom(orders)
	return nil
}
