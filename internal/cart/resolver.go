package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

// Resolver implements Store over the durable owner-keyed store and the
// ephemeral session-keyed store.
//
// Precedence: an authenticated owner always resolves to the durable cart,
// even if a guest cart exists for the same session. The guest cart is left
// to expire on its own; lines are never merged and never silently lost from
// the durable cart.
type Resolver struct {
	durable DurableStore
	guest   GuestStore
	catalog stock.Catalog
	sfg     singleflight.Group // prevents read stampede per owner key
}

func NewResolver(durable DurableStore, guest GuestStore, catalog stock.Catalog) *Resolver {
	return &Resolver{
		durable: durable,
		guest:   guest,
		catalog: catalog,
	}
}

func (r *Resolver) Resolve(ctx context.Context, ownerID, sessionID string) (*domain.Cart, error) {
	if ownerID != "" {
		v, err, _ := r.sfg.Do(ownerID, func() (interface{}, error) {
			c, err := r.durable.Get(ctx, ownerID)
			if errors.Is(err, ErrCartNotFound) {
				return emptyCart(ownerID, ""), nil
			}
			if err != nil {
				return nil, fmt.Errorf("durable.Get: %w", err)
			}
			return c, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(*domain.Cart), nil
	}

	if sessionID != "" {
		c, err := r.guest.Get(ctx, sessionID)
		if errors.Is(err, ErrCartNotFound) {
			return emptyCart("", sessionID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("guest.Get: %w", err)
		}
		return c, nil
	}

	return nil, ErrMissingIdentity
}

func (r *Resolver) AddLine(ctx context.Context, c *domain.Cart, productID int64, quantity int32) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	newQuantity := quantity
	if i := c.FindLine(productID); i >= 0 {
		newQuantity += c.Lines[i].Quantity
	}
	if err := r.checkStock(ctx, productID, newQuantity); err != nil {
		return err
	}

	if i := c.FindLine(productID); i >= 0 {
		c.Lines[i].Quantity = newQuantity
	} else {
		c.Lines = append(c.Lines, domain.CartLine{
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   time.Now(),
		})
	}
	c.UpdatedAt = time.Now()

	if c.IsGuest() {
		return r.putGuest(ctx, c)
	}
	if err := r.durable.UpsertLine(ctx, c.OwnerID, domain.CartLine{ProductID: productID, Quantity: quantity}); err != nil {
		return fmt.Errorf("durable.UpsertLine: %w", err)
	}
	return nil
}

func (r *Resolver) UpdateLine(ctx context.Context, c *domain.Cart, productID int64, quantity int32) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if c.FindLine(productID) < 0 {
		return ErrCartLineNotFound
	}
	if err := r.checkStock(ctx, productID, quantity); err != nil {
		return err
	}

	c.Lines[c.FindLine(productID)].Quantity = quantity
	c.UpdatedAt = time.Now()

	if c.IsGuest() {
		return r.putGuest(ctx, c)
	}
	if err := r.durable.SetLineQuantity(ctx, c.OwnerID, productID, quantity); err != nil {
		return fmt.Errorf("durable.SetLineQuantity: %w", err)
	}
	return nil
}

func (r *Resolver) RemoveLine(ctx context.Context, c *domain.Cart, productID int64) error {
	i := c.FindLine(productID)
	if i < 0 {
		return ErrCartLineNotFound
	}

	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.UpdatedAt = time.Now()

	if c.IsGuest() {
		return r.putGuest(ctx, c)
	}
	deleted, err := r.durable.DeleteLine(ctx, c.OwnerID, productID)
	if err != nil {
		return fmt.Errorf("durable.DeleteLine: %w", err)
	}
	if !deleted {
		return ErrCartLineNotFound
	}
	return nil
}

func (r *Resolver) Clear(ctx context.Context, c *domain.Cart) error {
	c.Lines = nil
	c.UpdatedAt = time.Now()

	if c.IsGuest() {
		if err := r.guest.Delete(ctx, c.SessionID); err != nil {
			return fmt.Errorf("guest.Delete: %w", err)
		}
		return nil
	}
	if err := r.durable.Delete(ctx, c.OwnerID); err != nil {
		return fmt.Errorf("durable.Delete: %w", err)
	}
	return nil
}

// checkStock is the soft availability check at cart-write time. Stock can
// still change before checkout; the ledger re-checks authoritatively when
// the order is created.
func (r *Resolver) checkStock(ctx context.Context, productID int64, quantity int32) error {
	p, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > p.Stock {
		return stock.InsufficientStockError{ProductID: productID}
	}
	return nil
}

// putGuest writes the whole snapshot back, which also slides the TTL.
func (r *Resolver) putGuest(ctx context.Context, c *domain.Cart) error {
	if err := r.guest.Put(ctx, c.SessionID, c); err != nil {
		return fmt.Errorf("guest.Put: %w", err)
	}
	return nil
}

func emptyCart(ownerID, sessionID string) *domain.Cart {
	now := time.Now()
	return &domain.Cart{
		OwnerID:   ownerID,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
