package types

import "time"

// DefaultProductImage is used when a product has no uploaded image.
const DefaultProductImage = "/images/placeholder.png"

// Product is a catalog entry. Descriptive attributes (brand, sku,
// weight, and so on) are free-form display strings.
type Product struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Price       float64 `json:"price" db:"price"`
	Description string  `json:"description" db:"description"`
	Category    string  `json:"category" db:"category"`
	Brand       string  `json:"brand" db:"brand"`
	SKU         string  `json:"sku" db:"sku"`
	Stock       int     `json:"stock" db:"stock"`
	Weight      string  `json:"weight" db:"weight"`
	Dimensions  string  `json:"dimensions" db:"dimensions"`
	Warranty    string  `json:"warranty" db:"warranty"`
	Origin      string  `json:"origin" db:"origin"`

	// Shipping and Returns are policy strings shown on the product page.
	Shipping string `json:"shipping" db:"shipping"`
	Returns  string `json:"returns" db:"returns"`

	// Image is the reference served to clients, either the placeholder
	// or an object-storage backed path.
	Image string `json:"image" db:"image"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProductSuggestion is the minimal display shape returned by the
// search suggestion endpoint.
type ProductSuggestion struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Image    string `json:"image"`
}
