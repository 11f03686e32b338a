package domain

import "time"

// Cart identity is owner XOR session: an authenticated user's cart is keyed
// by OwnerID and stored durably, a guest's cart by SessionID in the
// ephemeral store. Exactly one of the two is set.
type Cart struct {
	OwnerID   string     `json:"owner_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartLine struct {
	ProductID int64     `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

func (c *Cart) IsGuest() bool {
	return c.OwnerID == ""
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// FindLine returns the index of the line for productID, or -1.
func (c *Cart) FindLine(productID int64) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
