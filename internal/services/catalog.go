package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"path"
	"strings"

	"github.com/minimart/apiserver/internal/storage"
	"github.com/minimart/apiserver/types"
	"github.com/sirupsen/logrus"
)

// Suggest never returns more than this many matches.
const maxSuggestions = 8

const imageKeyPrefix = "products/"

// ProductRepository defines persistence operations for catalog products.
type ProductRepository interface {
	List(ctx context.Context) ([]types.Product, error)
	Get(ctx context.Context, id int) (types.Product, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]types.Product, error)
	Search(ctx context.Context, query string, limit int) ([]types.ProductSuggestion, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

// CatalogService encapsulates product use-cases, including image
// objects when a storage backend is configured.
type CatalogService struct {
	repo    ProductRepository
	storage *storage.Storage
}

func NewCatalogService(repo ProductRepository, st *storage.Storage) *CatalogService {
	return &CatalogService{repo: repo, storage: st}
}

func (s *CatalogService) List(ctx context.Context) ([]types.Product, error) {
	return s.repo.List(ctx)
}

func (s *CatalogService) Get(ctx context.Context, id int) (types.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *CatalogService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Suggest returns up to eight case-insensitive substring matches over
// name, description, and category. A blank query short-circuits to an
// empty list without touching the store.
func (s *CatalogService) Suggest(ctx context.Context, query string) ([]types.ProductSuggestion, error) {
	if strings.TrimSpace(query) == "" {
		return []types.ProductSuggestion{}, nil
	}
	return s.repo.Search(ctx, query, maxSuggestions)
}

func (s *CatalogService) Create(ctx context.Context, product types.Product) (types.Product, error) {
	return s.repo.Create(ctx, product)
}

func (s *CatalogService) Update(ctx context.Context, product types.Product) (types.Product, error) {
	return s.repo.Update(ctx, product)
}

// Delete removes the product; an attached image object is removed
// best-effort afterwards.
func (s *CatalogService) Delete(ctx context.Context, id int) error {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if key, ok := imageObjectKey(product.Image); ok && s.storage != nil {
		if err := s.storage.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("failed to delete product image object")
		}
	}
	return nil
}

// PutImage stores an uploaded product image and returns the reference
// to persist on the product.
func (s *CatalogService) PutImage(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	name := randomImageName(filename)
	key := imageKeyPrefix + name
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return "/api/products/images/" + name, nil
}

// OpenImage streams a stored product image by name.
func (s *CatalogService) OpenImage(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.storage.Get(ctx, imageKeyPrefix+name)
}

// HasStorage reports whether an image storage backend is configured.
func (s *CatalogService) HasStorage() bool {
	return s.storage != nil
}

func imageObjectKey(image string) (string, bool) {
	const prefix = "/api/products/images/"
	if !strings.HasPrefix(image, prefix) {
		return "", false
	}
	return imageKeyPrefix + strings.TrimPrefix(image, prefix), true
}

func randomImageName(filename string) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "image" + path.Ext(filename)
	}
	return hex.EncodeToString(buf[:]) + strings.ToLower(path.Ext(filename))
}
