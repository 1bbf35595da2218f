package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/minimart/apiserver/types"
)

// OrderRepository handles persistence for orders.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateFromCart inserts the order with its lines and clears the
// originating cart in a single transaction, so the order is never
// visible without the cart having been emptied.
func (r *OrderRepository) CreateFromCart(ctx context.Context, order types.Order, cartID int) (types.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Order{}, err
	}
	defer tx.Rollback()

	order.CreatedAt = time.Now()

	const orderQuery = `
		INSERT INTO orders (user_id, total, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		orderQuery,
		order.UserID,
		order.Total,
		order.Status,
		order.CreatedAt,
	).Scan(&order.ID); err != nil {
		return types.Order{}, err
	}

	const itemQuery = `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery, order.ID, item.ProductID, item.Quantity, item.Price); err != nil {
			return types.Order{}, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return types.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int) (types.Order, error) {
	const query = `
		SELECT id, user_id, total, status, created_at
		FROM orders
		WHERE id = $1`
	var order types.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Order{}, ErrNotFound
		}
		return types.Order{}, err
	}

	items, err := r.itemsForOrders(ctx, []int{order.ID})
	if err != nil {
		return types.Order{}, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []types.OrderItem{}
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int) ([]types.Order, error) {
	const query = `
		SELECT id, user_id, total, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

func (r *OrderRepository) ListByStatus(ctx context.Context, status string) ([]types.Order, error) {
	const query = `
		SELECT id, user_id, total, status, created_at
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, status)
}

// UpdateStatus transitions an order from one status to another. It
// returns ErrNotFound when the order does not exist in the expected
// status, which callers disambiguate with a Get.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int, from, to string) error {
	const query = `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, to, id, from)
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
	return nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	const query = `SELECT COUNT(1) FROM orders WHERE status = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, status).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *OrderRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(1) FROM orders WHERE created_at >= $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, arg any) ([]types.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.Order, 0)
	ids := make([]int, 0)
	for rows.Next() {
		var order types.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.itemsForOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []types.OrderItem{}
		}
	}
	return orders, nil
}

func (r *OrderRepository) itemsForOrders(ctx context.Context, orderIDs []int) (map[int][]types.OrderItem, error) {
	items := make(map[int][]types.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return items, nil
	}

	const query = `
		SELECT order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int
		var item types.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
