package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/minimart/apiserver/types"
)

// CartRepository handles persistence for carts and their line items.
type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) GetByUser(ctx context.Context, userID int) (types.Cart, error) {
	const query = `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1`
	var cart types.Cart
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Cart{}, ErrNotFound
		}
		return types.Cart{}, err
	}

	items, err := r.items(ctx, cart.ID)
	if err != nil {
		return types.Cart{}, err
	}
	cart.Items = items
	return cart, nil
}

func (r *CartRepository) Create(ctx context.Context, userID int) (types.Cart, error) {
	now := time.Now()
	cart := types.Cart{
		UserID:    userID,
		Items:     []types.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	const query = `
		INSERT INTO carts (user_id, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, userID, cart.CreatedAt, cart.UpdatedAt).Scan(&cart.ID); err != nil {
		return types.Cart{}, err
	}
	return cart, nil
}

// ReplaceItems writes back the whole line set for a cart: every
// mutation replaces the cart contents rather than patching a line.
func (r *CartRepository) ReplaceItems(ctx context.Context, cartID int, items []types.CartItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}

	const insertQuery = `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, insertQuery, cartID, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now(), cartID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (r *CartRepository) items(ctx context.Context, cartID int) ([]types.CartItem, error) {
	const query = `
		SELECT product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.CartItem, 0)
	for rows.Next() {
		var item types.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
