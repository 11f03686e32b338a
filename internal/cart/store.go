package cart

import (
	"context"
	"errors"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartLineNotFound = errors.New("cart line not found")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrMissingIdentity  = errors.New("neither owner nor session identity supplied")
)

// Store is the single entry point for cart access. Resolution and every
// mutation route to the durable owner-keyed store or the ephemeral
// session-keyed store depending on the cart's identity.
type Store interface {
	// Resolve returns the cart for the given identity, creating an empty
	// one lazily if none exists. When both an owner and a session are
	// present the durable owner-keyed cart wins.
	Resolve(ctx context.Context, ownerID, sessionID string) (*domain.Cart, error)

	AddLine(ctx context.Context, c *domain.Cart, productID int64, quantity int32) error
	UpdateLine(ctx context.Context, c *domain.Cart, productID int64, quantity int32) error
	RemoveLine(ctx context.Context, c *domain.Cart, productID int64) error
	Clear(ctx context.Context, c *domain.Cart) error
}

// DurableStore persists owner-keyed carts.
type DurableStore interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	UpsertLine(ctx context.Context, ownerID string, line domain.CartLine) error
	SetLineQuantity(ctx context.Context, ownerID string, productID int64, quantity int32) error
	DeleteLine(ctx context.Context, ownerID string, productID int64) (bool, error)
	Delete(ctx context.Context, ownerID string) error
}

// GuestStore holds session-keyed cart snapshots with a sliding TTL:
// every Put refreshes the expiry.
type GuestStore interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Put(ctx context.Context, sessionID string, c *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}
