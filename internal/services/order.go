package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/minimart/apiserver/internal/metrics"
	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
	"github.com/sirupsen/logrus"
)

// Channels order lifecycle events are published on.
const (
	ChannelOrderPlaced   = "orders.placed"
	ChannelOrderApproved = "orders.approved"
)

const ordersTodayWindow = 24 * time.Hour

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	CreateFromCart(ctx context.Context, order types.Order, cartID int) (types.Order, error)
	Get(ctx context.Context, id int) (types.Order, error)
	ListByUser(ctx context.Context, userID int) ([]types.Order, error)
	ListByStatus(ctx context.Context, status string) ([]types.Order, error)
	UpdateStatus(ctx context.Context, id int, from, to string) error
	CountByStatus(ctx context.Context, status string) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// EventPublisher publishes order lifecycle events. Satisfied by mq.MQ.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// OrderEvent is the payload published on order lifecycle channels.
type OrderEvent struct {
	OrderID int     `json:"order_id"`
	UserID  int     `json:"user_id"`
	Total   float64 `json:"total"`
	Status  string  `json:"status"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Products      int `json:"products"`
	OrdersPending int `json:"ordersPending"`
	OrdersToday   int `json:"ordersToday"`
}

// OrderService encapsulates checkout and order lifecycle use-cases.
type OrderService struct {
	orders   OrderRepository
	carts    CartRepository
	products ProductRepository
	events   EventPublisher
}

// NewOrderService constructs an OrderService. events may be nil when
// no broker is configured.
func NewOrderService(orders OrderRepository, carts CartRepository, products ProductRepository, events EventPublisher) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		products: products,
		events:   events,
	}
}

// Checkout snapshots the user's cart into a pending order and empties
// the cart. Each order line copies the product's current price, so
// later catalog edits cannot change the order.
func (s *OrderService) Checkout(ctx context.Context, userID int) (types.Order, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Order{}, ErrCartEmpty
		}
		return types.Order{}, err
	}
	if len(cart.Items) == 0 {
		return types.Order{}, ErrCartEmpty
	}

	ids := make([]int, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return types.Order{}, err
	}

	items := make([]types.OrderItem, 0, len(cart.Items))
	var total float64
	for _, line := range cart.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return types.Order{}, store.ErrNotFound
		}
		items = append(items, types.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
		total += product.Price * float64(line.Quantity)
	}

	order, err := s.orders.CreateFromCart(ctx, types.Order{
		UserID: userID,
		Items:  items,
		Total:  total,
		Status: types.OrderStatusPending,
	}, cart.ID)
	if err != nil {
		return types.Order{}, err
	}

	metrics.RecordCheckout(order.Total)
	s.publish(ctx, ChannelOrderPlaced, order)
	return s.populate(ctx, order)
}

// ListForUser returns the user's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID int) ([]types.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populateAll(ctx, orders)
}

// Pending returns all pending orders, newest first.
func (s *OrderService) Pending(ctx context.Context) ([]types.Order, error) {
	orders, err := s.orders.ListByStatus(ctx, types.OrderStatusPending)
	if err != nil {
		return nil, err
	}
	return s.populateAll(ctx, orders)
}

// Approve transitions a pending order to approved. Any other starting
// status is rejected with ErrOrderNotPending.
func (s *OrderService) Approve(ctx context.Context, id int) (types.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return types.Order{}, err
	}
	if order.Status != types.OrderStatusPending {
		return types.Order{}, ErrOrderNotPending
	}

	err = s.orders.UpdateStatus(ctx, id, types.OrderStatusPending, types.OrderStatusApproved)
	if err != nil {
		// The status check and the update are separate reads, a
		// concurrent approval can win in between.
		if errors.Is(err, store.ErrNotFound) {
			return types.Order{}, ErrOrderNotPending
		}
		return types.Order{}, err
	}
	order.Status = types.OrderStatusApproved

	metrics.RecordApproval()
	s.publish(ctx, ChannelOrderApproved, order)
	return s.populate(ctx, order)
}

// Stats summarizes the catalog and order books for the admin dashboard.
func (s *OrderService) Stats(ctx context.Context) (Stats, error) {
	products, err := s.products.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	pending, err := s.orders.CountByStatus(ctx, types.OrderStatusPending)
	if err != nil {
		return Stats{}, err
	}
	today, err := s.orders.CountSince(ctx, time.Now().Add(-ordersTodayWindow))
	if err != nil {
		return Stats{}, err
	}
	return Stats{Products: products, OrdersPending: pending, OrdersToday: today}, nil
}

// publish sends an order lifecycle event. Failures are logged and
// never fail the caller's request.
func (s *OrderService) publish(ctx context.Context, channel string, order types.Order) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(OrderEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Total,
		Status:  order.Status,
	})
	if err != nil {
		logrus.WithError(err).WithField("channel", channel).Warn("failed to encode order event")
		return
	}

	if _, err := s.events.Publish(ctx, channel, data, nil); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"channel":  channel,
			"order_id": order.ID,
		}).Warn("failed to publish order event")
	}
}

func (s *OrderService) populate(ctx context.Context, order types.Order) (types.Order, error) {
	orders, err := s.populateAll(ctx, []types.Order{order})
	if err != nil {
		return types.Order{}, err
	}
	return orders[0], nil
}

func (s *OrderService) populateAll(ctx context.Context, orders []types.Order) ([]types.Order, error) {
	idSet := make(map[int]struct{})
	for _, order := range orders {
		for _, item := range order.Items {
			idSet[item.ProductID] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return orders, nil
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		for j := range orders[i].Items {
			if product, ok := products[orders[i].Items[j].ProductID]; ok {
				p := product
				orders[i].Items[j].Product = &p
			}
		}
	}
	return orders, nil
}
