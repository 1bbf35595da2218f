package types

import "time"

// Cart is the per-user collection of selected-but-unpurchased lines.
// Each user has at most one cart, created lazily on first access.
type Cart struct {
	ID     int        `json:"id" db:"id"`
	UserID int        `json:"user_id" db:"user_id"`
	Items  []CartItem `json:"items"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartItem is a single cart line. A cart never holds two lines for
// the same product; quantities are merged instead.
type CartItem struct {
	ProductID int `json:"product_id" db:"product_id"`
	Quantity  int `json:"quantity" db:"quantity"`

	// Product is resolved from the catalog when the cart is read back.
	Product *Product `json:"product,omitempty"`
}
