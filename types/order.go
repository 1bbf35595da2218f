package types

import "time"

// Order lifecycle statuses. The only transition is pending -> approved.
const (
	OrderStatusPending  = "pending"
	OrderStatusApproved = "approved"
)

// Order is an immutable snapshot of a cart taken at checkout time.
// Only the status field changes after creation.
type Order struct {
	ID     int         `json:"id" db:"id"`
	UserID int         `json:"user_id" db:"user_id"`
	Items  []OrderItem `json:"items"`

	// Total equals the sum of item price times quantity at creation time.
	Total  float64 `json:"total" db:"total"`
	Status string  `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OrderItem is a single order line. Price is copied from the product
// at checkout; later catalog price edits do not affect it.
type OrderItem struct {
	ProductID int     `json:"product_id" db:"product_id"`
	Quantity  int     `json:"quantity" db:"quantity"`
	Price     float64 `json:"price" db:"price"`

	Product *Product `json:"product,omitempty"`
}
