package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/store"
)

// ProductsHandler provides the public catalog endpoints.
type ProductsHandler struct {
	catalog *services.CatalogService
}

func NewProductsHandler(catalog *services.CatalogService) *ProductsHandler {
	return &ProductsHandler{catalog: catalog}
}

// ProductsRouter registers public catalog routes on the given router.
func ProductsRouter(r chi.Router, catalog *services.CatalogService) {
	handler := NewProductsHandler(catalog)

	r.Get("/", handler.ListProducts)
	r.Get("/suggestions/search", handler.Suggestions)
	r.Get("/images/{imageName}", handler.Image)
	r.Get("/{productID}", handler.GetProduct)
}

func (h *ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// Suggestions serves the search autocomplete. A blank query returns
// an empty list.
func (h *ProductsHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	suggestions, err := h.catalog.Suggest(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search products")
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// Image streams a product image object from storage.
func (h *ProductsHandler) Image(w http.ResponseWriter, r *http.Request) {
	if !h.catalog.HasStorage() {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	name := chi.URLParam(r, "imageName")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid image name")
		return
	}

	reader, err := h.catalog.OpenImage(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer reader.Close()

	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already out; nothing useful left to send.
		return
	}
}

func parseProductID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "productID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid product id")
	}
	return id, nil
}
