package services

import (
	"context"
	"testing"
	"time"

	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrderRepo is an in-memory OrderRepository. CreateFromCart
// mirrors the SQL implementation by clearing the cart in the same
// step as the insert.
type fakeOrderRepo struct {
	nextID int
	orders map[int]*types.Order
	carts  *fakeCartRepo
}

func newFakeOrderRepo(carts *fakeCartRepo) *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: map[int]*types.Order{}, carts: carts}
}

func (f *fakeOrderRepo) CreateFromCart(ctx context.Context, order types.Order, cartID int) (types.Order, error) {
	order.ID = f.nextID
	f.nextID++
	order.CreatedAt = time.Now()
	stored := order
	stored.Items = append([]types.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &stored

	if err := f.carts.ReplaceItems(ctx, cartID, nil); err != nil {
		return types.Order{}, err
	}
	return order, nil
}

func (f *fakeOrderRepo) Get(ctx context.Context, id int) (types.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return types.Order{}, store.ErrNotFound
	}
	out := *order
	out.Items = append([]types.OrderItem(nil), order.Items...)
	return out, nil
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID int) ([]types.Order, error) {
	out := make([]types.Order, 0)
	for id := f.nextID - 1; id >= 1; id-- {
		if order, ok := f.orders[id]; ok && order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListByStatus(ctx context.Context, status string) ([]types.Order, error) {
	out := make([]types.Order, 0)
	for id := f.nextID - 1; id >= 1; id-- {
		if order, ok := f.orders[id]; ok && order.Status == status {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id int, from, to string) error {
	order, ok := f.orders[id]
	if !ok || order.Status != from {
		return store.ErrNotFound
	}
	order.Status = to
	return nil
}

func (f *fakeOrderRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	count := 0
	for _, order := range f.orders {
		if order.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeOrderRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	count := 0
	for _, order := range f.orders {
		if !order.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type publishedEvent struct {
	channel string
	data    []byte
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.events = append(f.events, publishedEvent{channel: channel, data: data})
	return "msg-1", nil
}

type orderFixture struct {
	orders    *OrderService
	carts     *CartService
	orderRepo *fakeOrderRepo
	cartRepo  *fakeCartRepo
	products  *fakeProductRepo
	publisher *fakePublisher
}

func newOrderFixture(t *testing.T) orderFixture {
	t.Helper()
	cartRepo := newFakeCartRepo()
	products := newFakeProductRepo()
	orderRepo := newFakeOrderRepo(cartRepo)
	publisher := &fakePublisher{}
	return orderFixture{
		orders:    NewOrderService(orderRepo, cartRepo, products, publisher),
		carts:     NewCartService(cartRepo, products),
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		products:  products,
		publisher: publisher,
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()

	// No cart at all.
	_, err := fix.orders.Checkout(ctx, 1)
	assert.ErrorIs(t, err, ErrCartEmpty)

	// A cart with no lines.
	_, err = fix.carts.Get(ctx, 1)
	require.NoError(t, err)
	_, err = fix.orders.Checkout(ctx, 1)
	assert.ErrorIs(t, err, ErrCartEmpty)

	assert.Empty(t, fix.orderRepo.orders, "no order may be created")
	assert.Empty(t, fix.publisher.events)
}

func TestCheckoutSnapshotsPrices(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p1 := fix.products.add("Aurora Wireless Headphones", 99.99)
	p2 := fix.products.add("Nimbus Smartwatch Pro", 199)

	_, err := fix.carts.AddItem(ctx, 1, p1.ID, 2)
	require.NoError(t, err)
	_, err = fix.carts.AddItem(ctx, 1, p2.ID, 1)
	require.NoError(t, err)

	order, err := fix.orders.Checkout(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusPending, order.Status)
	assert.InDelta(t, 2*99.99+199, order.Total, 1e-9)

	// Raise the catalog price and re-read the order: the snapshot
	// must not move.
	p1.Price = 499
	_, err = fix.products.Update(ctx, p1)
	require.NoError(t, err)

	reloaded, err := fix.orderRepo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2*99.99+199, reloaded.Total, 1e-9)
	require.Len(t, reloaded.Items, 2)
	assert.InDelta(t, 99.99, reloaded.Items[0].Price, 1e-9)
}

func TestCheckoutEmptiesCart(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p := fix.products.add("Vertex Mechanical Keyboard", 129.5)

	_, err := fix.carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	_, err = fix.orders.Checkout(ctx, 1)
	require.NoError(t, err)

	cart, err := fix.carts.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckoutPublishesPlacedEvent(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p := fix.products.add("Drift Trail Backpack 28L", 79)

	_, err := fix.carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	order, err := fix.orders.Checkout(ctx, 1)
	require.NoError(t, err)

	require.Len(t, fix.publisher.events, 1)
	assert.Equal(t, ChannelOrderPlaced, fix.publisher.events[0].channel)
	assert.Contains(t, string(fix.publisher.events[0].data), `"order_id":`)
	assert.NotZero(t, order.ID)
}

func TestCheckoutWithoutPublisher(t *testing.T) {
	cartRepo := newFakeCartRepo()
	products := newFakeProductRepo()
	orderRepo := newFakeOrderRepo(cartRepo)
	orders := NewOrderService(orderRepo, cartRepo, products, nil)
	carts := NewCartService(cartRepo, products)
	ctx := context.Background()

	p := products.add("Aurora Wireless Headphones", 99.99)
	_, err := carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)

	_, err = orders.Checkout(ctx, 1)
	assert.NoError(t, err)
}

func TestListForUserNewestFirst(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p := fix.products.add("Aurora Wireless Headphones", 99.99)

	for i := 0; i < 3; i++ {
		_, err := fix.carts.AddItem(ctx, 1, p.ID, 1)
		require.NoError(t, err)
		_, err = fix.orders.Checkout(ctx, 1)
		require.NoError(t, err)
	}

	orders, err := fix.orders.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Greater(t, orders[0].ID, orders[1].ID)
	assert.Greater(t, orders[1].ID, orders[2].ID)
}

func TestApproveTransitionsPendingOrder(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p := fix.products.add("Aurora Wireless Headphones", 99.99)

	_, err := fix.carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)
	placed, err := fix.orders.Checkout(ctx, 1)
	require.NoError(t, err)

	approved, err := fix.orders.Approve(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusApproved, approved.Status)

	// Exactly one placed event and one approved event.
	require.Len(t, fix.publisher.events, 2)
	assert.Equal(t, ChannelOrderApproved, fix.publisher.events[1].channel)
}

func TestApproveTwiceFails(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p := fix.products.add("Aurora Wireless Headphones", 99.99)

	_, err := fix.carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)
	placed, err := fix.orders.Checkout(ctx, 1)
	require.NoError(t, err)

	_, err = fix.orders.Approve(ctx, placed.ID)
	require.NoError(t, err)

	_, err = fix.orders.Approve(ctx, placed.ID)
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestApproveUnknownOrder(t *testing.T) {
	fix := newOrderFixture(t)

	_, err := fix.orders.Approve(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStats(t *testing.T) {
	fix := newOrderFixture(t)
	ctx := context.Background()
	p := fix.products.add("Aurora Wireless Headphones", 99.99)
	fix.products.add("Nimbus Smartwatch Pro", 199)

	_, err := fix.carts.AddItem(ctx, 1, p.ID, 1)
	require.NoError(t, err)
	placed, err := fix.orders.Checkout(ctx, 1)
	require.NoError(t, err)

	_, err = fix.carts.AddItem(ctx, 2, p.ID, 1)
	require.NoError(t, err)
	_, err = fix.orders.Checkout(ctx, 2)
	require.NoError(t, err)

	_, err = fix.orders.Approve(ctx, placed.ID)
	require.NoError(t, err)

	stats, err := fix.orders.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Products)
	assert.Equal(t, 1, stats.OrdersPending)
	assert.Equal(t, 2, stats.OrdersToday)
}
