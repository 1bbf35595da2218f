package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
)

// OrdersHandler provides the authenticated order endpoints.
type OrdersHandler struct {
	orders *services.OrderService
}

func NewOrdersHandler(orders *services.OrderService) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// OrdersRouter registers order routes on the given router. The caller
// is expected to have applied RequireAuth.
func OrdersRouter(r chi.Router, orders *services.OrderService) {
	handler := NewOrdersHandler(orders)

	r.Post("/checkout", handler.Checkout)
	r.Get("/", handler.ListOrders)
}

// Checkout snapshots the cart into a pending order.
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	order, err := h.orders.Checkout(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCartEmpty):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "product not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{
		Message: "Order placed successfully",
		Order:   order,
	})
}

// ListOrders returns the caller's orders, newest first.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	orders, err := h.orders.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type CheckoutResponse struct {
	Message string      `json:"message"`
	Order   types.Order `json:"order"`
}
