package stock

import (
	"context"
	"sync"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// MemoryLedger implements Ledger with in-memory storage. It backs unit
// tests and the in-memory unit of work.
type MemoryLedger struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		products: make(map[int64]*domain.Product),
	}
}

// SetProduct inserts or replaces a product (used for initialization).
func (l *MemoryLedger) SetProduct(p domain.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[p.ID] = &p
}

func (l *MemoryLedger) GetProduct(_ context.Context, productID int64) (domain.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, exists := l.products[productID]
	if !exists {
		return domain.Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (l *MemoryLedger) Reserve(_ context.Context, productID int64, quantity int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, exists := l.products[productID]
	if !exists {
		return ErrProductNotFound
	}
	if p.Stock < quantity {
		return InsufficientStockError{ProductID: productID}
	}

	p.Stock -= quantity
	return nil
}

// Clone returns a deep copy, so a transaction scope can work on its own
// view and throw it away on rollback.
func (l *MemoryLedger) Clone() *MemoryLedger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	clone := NewMemoryLedger()
	for id, p := range l.products {
		cp := *p
		clone.products[id] = &cp
	}
	return clone
}

// ReplaceFrom overwrites this ledger's contents with those of other
// (commit of a cloned transaction scope).
func (l *MemoryLedger) ReplaceFrom(other *MemoryLedger) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.products = make(map[int64]*domain.Product, len(other.products))
	for id, p := range other.products {
		cp := *p
		l.products[id] = &cp
	}
}
