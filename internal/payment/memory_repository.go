package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// MemoryRepository implements Repository with in-memory storage for tests
// and local runs.
type MemoryRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		payments: make(map[uuid.UUID]*domain.Payment),
	}
}

func (r *MemoryRepository) CreatePayment(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetPayment(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.payments[id]
	if !exists {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) SetIntentID(_ context.Context, id uuid.UUID, intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.payments[id]
	if !exists {
		return ErrPaymentNotFound
	}
	p.IntentID = intentID
	return nil
}

func (r *MemoryRepository) MarkTerminal(_ context.Context, id uuid.UUID, status domain.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.payments[id]
	if !exists {
		return false, ErrPaymentNotFound
	}
	if p.Status.IsTerminal() {
		return false, nil
	}
	p.Status = status
	return true, nil
}
