package services

import (
	"context"
	"errors"

	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
)

// CartRepository defines persistence operations for carts. Mutations
// write back the entire line set rather than patching single lines.
type CartRepository interface {
	GetByUser(ctx context.Context, userID int) (types.Cart, error)
	Create(ctx context.Context, userID int) (types.Cart, error)
	ReplaceItems(ctx context.Context, cartID int, items []types.CartItem) error
}

// CartService encapsulates cart use-cases.
type CartService struct {
	carts    CartRepository
	products ProductRepository
}

func NewCartService(carts CartRepository, products ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// Get returns the user's cart with product references resolved,
// creating an empty cart on first access.
func (s *CartService) Get(ctx context.Context, userID int) (types.Cart, error) {
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return types.Cart{}, err
	}
	return s.populate(ctx, cart)
}

// AddItem puts quantity units of a product into the cart. An existing
// line for the same product has its quantity increased; a cart never
// holds two lines for one product.
func (s *CartService) AddItem(ctx context.Context, userID, productID, quantity int) (types.Cart, error) {
	if quantity < 1 {
		return types.Cart{}, ErrInvalidQuantity
	}

	if _, err := s.products.Get(ctx, productID); err != nil {
		return types.Cart{}, err
	}

	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return types.Cart{}, err
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, types.CartItem{ProductID: productID, Quantity: quantity})
	}

	if err := s.carts.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return types.Cart{}, err
	}
	return s.populate(ctx, cart)
}

// RemoveItem drops the line for a product. A product with no line in
// the cart is not an error; only a missing cart is.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int) (types.Cart, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return types.Cart{}, err
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept

	if err := s.carts.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return types.Cart{}, err
	}
	return s.populate(ctx, cart)
}

// Clear empties the cart's line set.
func (s *CartService) Clear(ctx context.Context, userID int) (types.Cart, error) {
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return types.Cart{}, err
	}

	cart.Items = []types.CartItem{}
	if err := s.carts.ReplaceItems(ctx, cart.ID, cart.Items); err != nil {
		return types.Cart{}, err
	}
	return cart, nil
}

func (s *CartService) getOrCreate(ctx context.Context, userID int) (types.Cart, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Cart{}, err
	}
	return s.carts.Create(ctx, userID)
}

func (s *CartService) populate(ctx context.Context, cart types.Cart) (types.Cart, error) {
	if len(cart.Items) == 0 {
		cart.Items = []types.CartItem{}
		return cart, nil
	}

	ids := make([]int, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return types.Cart{}, err
	}
	for i := range cart.Items {
		if product, ok := products[cart.Items[i].ProductID]; ok {
			p := product
			cart.Items[i].Product = &p
		}
	}
	return cart, nil
}
