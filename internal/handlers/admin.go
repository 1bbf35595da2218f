package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/store"
	"github.com/minimart/apiserver/types"
)

const (
	maxMultipartMemory = 16 << 20
	maxImageBytes      = 10 << 20

	formFieldName        = "name"
	formFieldPrice       = "price"
	formFieldDescription = "description"
	formFieldCategory    = "category"
	formFieldBrand       = "brand"
	formFieldSKU         = "sku"
	formFieldStock       = "stock"
	formFieldWeight      = "weight"
	formFieldDimensions  = "dimensions"
	formFieldWarranty    = "warranty"
	formFieldOrigin      = "origin"
	formFieldShipping    = "shipping"
	formFieldReturns     = "returns"
	formFieldImage       = "image"
)

// ImageFile represents an uploaded product image.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AdminHandler provides the admin management endpoints.
type AdminHandler struct {
	catalog     *services.CatalogService
	orders      *services.OrderService
	userService *services.UserService
}

func NewAdminHandler(catalog *services.CatalogService, orders *services.OrderService, userService *services.UserService) *AdminHandler {
	return &AdminHandler{
		catalog:     catalog,
		orders:      orders,
		userService: userService,
	}
}

// AdminRouter registers admin routes on the given router. The caller
// is expected to have applied RequireAuth and RequireRole("admin").
func AdminRouter(r chi.Router, catalog *services.CatalogService, orders *services.OrderService, userService *services.UserService) {
	handler := NewAdminHandler(catalog, orders, userService)

	r.Post("/products", handler.CreateProduct)
	r.Route("/products/{productID}", func(r chi.Router) {
		r.Put("/", handler.UpdateProduct)
		r.Delete("/", handler.DeleteProduct)
	})
	r.Get("/orders/pending", handler.PendingOrders)
	r.Post("/orders/{orderID}/approve", handler.ApproveOrder)
	r.Get("/stats", handler.Stats)
	r.Get("/users", handler.ListUsers)
	r.Delete("/users/{userID}", handler.DeleteUser)
	r.Put("/users/{userID}/role", handler.ChangeUserRole)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, err := parseProductForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := req.Product
	if req.Image != nil {
		image, err := h.storeImage(r, *req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		product.Image = image
	}

	created, err := h.catalog.Create(r.Context(), product)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch product")
		return
	}

	req, err := parseProductForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := req.Product
	product.ID = id
	product.Image = existing.Image
	if req.Image != nil {
		image, err := h.storeImage(r, *req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		product.Image = image
	}

	updated, err := h.catalog.Update(r.Context(), product)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "orderID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.Approve(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrOrderNotPending):
			writeError(w, http.StatusBadRequest, "order is not pending")
		default:
			writeError(w, http.StatusInternalServerError, "failed to approve order")
		}
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req RoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.ChangeRole(r.Context(), id, strings.TrimSpace(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "invalid role")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) storeImage(r *http.Request, image ImageFile) (string, error) {
	if !h.catalog.HasStorage() {
		return "", errors.New("image storage is not configured")
	}
	return h.catalog.PutImage(r.Context(), image.Filename, image.ContentType, image.Data)
}

// ProductUpsertRequest represents the parsed multipart form payload.
type ProductUpsertRequest struct {
	Product types.Product
	Image   *ImageFile
}

type RoleChangeRequest struct {
	Role string `json:"role"`
}

func parseProductForm(r *http.Request) (ProductUpsertRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return ProductUpsertRequest{}, errors.New("invalid multipart form")
	}

	name := strings.TrimSpace(r.FormValue(formFieldName))
	if name == "" {
		return ProductUpsertRequest{}, errors.New("name is required")
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue(formFieldPrice)), 64)
	if err != nil || price < 0 {
		return ProductUpsertRequest{}, errors.New("invalid price")
	}

	stock, err := parseOptionalInt(r.FormValue(formFieldStock))
	if err != nil || stock < 0 {
		return ProductUpsertRequest{}, errors.New("invalid stock")
	}

	product := types.Product{
		Name:        name,
		Price:       price,
		Description: strings.TrimSpace(r.FormValue(formFieldDescription)),
		Category:    strings.TrimSpace(r.FormValue(formFieldCategory)),
		Brand:       strings.TrimSpace(r.FormValue(formFieldBrand)),
		SKU:         strings.TrimSpace(r.FormValue(formFieldSKU)),
		Stock:       stock,
		Weight:      strings.TrimSpace(r.FormValue(formFieldWeight)),
		Dimensions:  strings.TrimSpace(r.FormValue(formFieldDimensions)),
		Warranty:    strings.TrimSpace(r.FormValue(formFieldWarranty)),
		Origin:      strings.TrimSpace(r.FormValue(formFieldOrigin)),
		Shipping:    strings.TrimSpace(r.FormValue(formFieldShipping)),
		Returns:     strings.TrimSpace(r.FormValue(formFieldReturns)),
	}
	if product.Shipping == "" {
		product.Shipping = "Free"
	}
	if product.Returns == "" {
		product.Returns = "30 days"
	}

	image, err := parseImageFile(r.MultipartForm)
	if err != nil {
		return ProductUpsertRequest{}, err
	}

	return ProductUpsertRequest{Product: product, Image: image}, nil
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseImageFile(form *multipart.Form) (*ImageFile, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &ImageFile{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
