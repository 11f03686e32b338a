package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrOrderNotPending = errors.New("order is not pending payment")
	ErrUnknownProvider = errors.New("unknown payment provider")
)

type Repository interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	SetIntentID(ctx context.Context, id uuid.UUID, intentID string) error

	// MarkTerminal moves a PENDING payment to the given terminal status.
	// It reports false without error when the payment was already
	// terminal, which is what makes webhook replays safe.
	MarkTerminal(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (bool, error)
}
