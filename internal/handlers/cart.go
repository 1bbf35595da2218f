package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/store"
)

// CartHandler provides the authenticated cart endpoints.
type CartHandler struct {
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// CartRouter registers cart routes on the given router. The caller is
// expected to have applied RequireAuth.
func CartRouter(r chi.Router, carts *services.CartService) {
	handler := NewCartHandler(carts)

	r.Get("/", handler.GetCart)
	r.Post("/add", handler.AddItem)
	r.Post("/remove", handler.RemoveItem)
	r.Post("/clear", handler.ClearCart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	cart, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	var req CartAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	cart, err := h.carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "quantity must be positive")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "product not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update cart")
		}
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	var req CartRemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), userID, req.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cart not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access denied")
		return
	}

	cart, err := h.carts.Clear(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

type CartAddRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

type CartRemoveRequest struct {
	ProductID int `json:"productId"`
}
