package domain

import "github.com/shopspring/decimal"

// Product is owned by the catalog; the checkout core only reads price and
// stock, and mutates stock through the ledger.
type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int32           `json:"stock"`
	CategoryID int64           `json:"category_id"`
}
