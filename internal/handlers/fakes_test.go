package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type fakeProductRepo struct {
	nextID   int
	products map[int]types.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{nextID: 1, products: map[int]types.Product{}}
}

func (f *fakeProductRepo) List(ctx context.Context) ([]types.Product, error) {
	out := make([]types.Product, 0, len(f.products))
	for id := 1; id < f.nextID; id++ {
		if product, ok := f.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Get(ctx context.Context, id int) (types.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return product, nil
}

func (f *fakeProductRepo) GetByIDs(ctx context.Context, ids []int) (map[int]types.Product, error) {
	out := map[int]types.Product{}
	for _, id := range ids {
		if product, ok := f.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Search(ctx context.Context, query string, limit int) ([]types.ProductSuggestion, error) {
	needle := strings.ToLower(query)
	out := []types.ProductSuggestion{}
	for id := 1; id < f.nextID; id++ {
		product, ok := f.products[id]
		if !ok {
			continue
		}
		haystack := strings.ToLower(product.Name + " " + product.Description + " " + product.Category)
		if !strings.Contains(haystack, needle) {
			continue
		}
		out = append(out, types.ProductSuggestion{
			ID:       product.ID,
			Name:     product.Name,
			Category: product.Category,
			Image:    product.Image,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Create(ctx context.Context, product types.Product) (types.Product, error) {
	product.ID = f.nextID
	f.nextID++
	if product.Image == "" {
		product.Image = types.DefaultProductImage
	}
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, product types.Product) (types.Product, error) {
	if _, ok := f.products[product.ID]; !ok {
		return types.Product{}, store.ErrNotFound
	}
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) Count(ctx context.Context) (int, error) {
	return len(f.products), nil
}

type fakeCartRepo struct {
	nextID int
	carts  map[int]types.Cart
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{nextID: 1, carts: map[int]types.Cart{}}
}

func (f *fakeCartRepo) GetByUser(ctx context.Context, userID int) (types.Cart, error) {
	for _, cart := range f.carts {
		if cart.UserID == userID {
			out := cart
			out.Items = append([]types.CartItem(nil), cart.Items...)
			return out, nil
		}
	}
	return types.Cart{}, store.ErrNotFound
}

func (f *fakeCartRepo) Create(ctx context.Context, userID int) (types.Cart, error) {
	cart := types.Cart{ID: f.nextID, UserID: userID, Items: []types.CartItem{}}
	f.nextID++
	f.carts[cart.ID] = cart
	return cart, nil
}

func (f *fakeCartRepo) ReplaceItems(ctx context.Context, cartID int, items []types.CartItem) error {
	cart, ok := f.carts[cartID]
	if !ok {
		return store.ErrNotFound
	}
	cart.Items = append([]types.CartItem(nil), items...)
	f.carts[cartID] = cart
	return nil
}

type fakeOrderRepo struct {
	nextID int
	orders map[int]types.Order
	carts  *fakeCartRepo
}

func newFakeOrderRepo(carts *fakeCartRepo) *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: map[int]types.Order{}, carts: carts}
}

func (f *fakeOrderRepo) CreateFromCart(ctx context.Context, order types.Order, cartID int) (types.Order, error) {
	order.ID = f.nextID
	f.nextID++
	order.CreatedAt = time.Now()
	f.orders[order.ID] = order
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
	return order, nil
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID int) ([]types.Order, error) {
	out := []types.Order{}
	for id := f.nextID - 1; id >= 1; id-- {
		if order, ok := f.orders[id]; ok && order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListByStatus(ctx context.Context, status string) ([]types.Order, error) {
	out := []types.Order{}
	for id := f.nextID - 1; id >= 1; id-- {
		if order, ok := f.orders[id]; ok && order.Status == status {
			out = append(out, order)
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
	f.orders[id] = order
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

type fakeUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(ctx context.Context) ([]types.User, error) {
	out := make([]types.User, 0, len(f.users))
	for id := 1; id < f.nextID; id++ {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// testEnv wires the full API router over in-memory repositories, no
// storage backend and no broker.
type testEnv struct {
	router   http.Handler
	users    *fakeUserRepo
	products *fakeProductRepo
	carts    *fakeCartRepo
	orders   *fakeOrderRepo

	userService *services.UserService
	catalog     *services.CatalogService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:    newFakeUserRepo(),
		products: newFakeProductRepo(),
		carts:    newFakeCartRepo(),
	}
	env.orders = newFakeOrderRepo(env.carts)

	env.userService = services.NewUserService(env.users)
	env.catalog = services.NewCatalogService(env.products, nil)
	cartService := services.NewCartService(env.carts, env.products)
	orderService := services.NewOrderService(env.orders, env.carts, env.products, nil)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, env.userService, testSecret)
		})
		r.Route("/products", func(r chi.Router) {
			ProductsRouter(r, env.catalog)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireAuth(testSecret))
			CartRouter(r, cartService)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireAuth(testSecret))
			OrdersRouter(r, orderService)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAuth(testSecret))
			r.Use(RequireRole(types.RoleAdmin))
			AdminRouter(r, env.catalog, orderService, env.userService)
		})
	})
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerUser(t *testing.T, username, password string) types.User {
	t.Helper()
	user, err := e.userService.Register(context.Background(), username, "", password)
	require.NoError(t, err)
	return user
}

func (e *testEnv) registerAdmin(t *testing.T, username, password string) types.User {
	t.Helper()
	user := e.registerUser(t, username, password)
	user, err := e.userService.ChangeRole(context.Background(), user.ID, types.RoleAdmin)
	require.NoError(t, err)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := issueToken(user, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) addProduct(t *testing.T, product types.Product) types.Product {
	t.Helper()
	created, err := e.catalog.Create(context.Background(), product)
	require.NoError(t, err)
	return created
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}
