package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError carries the offending product so the client can
// react per line (remove it, reduce the quantity).
type InsufficientStockError struct {
	ProductID int64
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// Catalog is the read side of the product table the checkout core depends on.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

// Ledger guards the stock invariant. Reserve must be an atomic
// check-and-decrement: two concurrent checkouts for the same product must
// never both succeed past the remaining stock.
type Ledger interface {
	Catalog

	// Reserve decrements stock for the product by quantity, or fails with
	// InsufficientStockError leaving the row untouched.
	Reserve(ctx context.Context, productID int64, quantity int32) error
}
