package order

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// MemoryRepository implements Repository with in-memory storage, used by
// the in-memory unit of work and the tests built on it.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[uuid.UUID]*domain.Order),
	}
}

func (r *MemoryRepository) CreateOrder(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, exists := r.orders[id]
	if !exists {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp, nil
}

func (r *MemoryRepository) ListOrdersByOwner(_ context.Context, ownerID string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range r.orders {
		if o.OwnerID == ownerID {
			cp := *o
			cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
			orders = append(orders, &cp)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *MemoryRepository) AdvanceStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, exists := r.orders[id]
	if !exists {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrIllegalTransition
	}
	o.Status = to
	return nil
}

// Len returns the number of stored orders.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Clone returns a deep copy for transaction scoping.
func (r *MemoryRepository) Clone() *MemoryRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewMemoryRepository()
	for id, o := range r.orders {
		cp := *o
		cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
		clone.orders[id] = &cp
	}
	return clone
}

// ReplaceFrom overwrites this repository's contents with those of other.
func (r *MemoryRepository) ReplaceFrom(other *MemoryRepository) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders = make(map[uuid.UUID]*domain.Order, len(other.orders))
	for id, o := range other.orders {
		cp := *o
		cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
		r.orders[id] = &cp
	}
}
