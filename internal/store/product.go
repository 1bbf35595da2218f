package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/minimart/apiserver/types"
)

const productColumns = `id, name, price, description, category, brand, sku, stock,
		weight, dimensions, warranty, origin, shipping, returns, image, created_at, updated_at`

// ProductRepository handles persistence for catalog products.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context) ([]types.Product, error) {
	const query = `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	const query = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}
	return product, nil
}

// GetByIDs resolves a set of product references in one round trip and
// returns them keyed by id. Missing ids are simply absent from the map.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int) (map[int]types.Product, error) {
	if len(ids) == 0 {
		return map[int]types.Product{}, nil
	}

	const query = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[int]types.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Search matches the query case-insensitively as a substring against
// name, description, and category, returning at most limit suggestions.
func (r *ProductRepository) Search(ctx context.Context, query string, limit int) ([]types.ProductSuggestion, error) {
	const searchQuery = `
		SELECT id, name, category, image
		FROM products
		WHERE name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1
		ORDER BY id
		LIMIT $2`
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.QueryContext(ctx, searchQuery, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suggestions := make([]types.ProductSuggestion, 0, limit)
	for rows.Next() {
		var s types.ProductSuggestion
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Image); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Image == "" {
		product.Image = types.DefaultProductImage
	}

	const query = `
		INSERT INTO products (name, price, description, category, brand, sku, stock,
			weight, dimensions, warranty, origin, shipping, returns, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		product.Category,
		product.Brand,
		product.SKU,
		product.Stock,
		product.Weight,
		product.Dimensions,
		product.Warranty,
		product.Origin,
		product.Shipping,
		product.Returns,
		product.Image,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	product.UpdatedAt = time.Now()

	const query = `
		UPDATE products
		SET name = $1,
			price = $2,
			description = $3,
			category = $4,
			brand = $5,
			sku = $6,
			stock = $7,
			weight = $8,
			dimensions = $9,
			warranty = $10,
			origin = $11,
			shipping = $12,
			returns = $13,
			image = $14,
			updated_at = $15
		WHERE id = $16`
	result, err := r.db.ExecContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		product.Category,
		product.Brand,
		product.SKU,
		product.Stock,
		product.Weight,
		product.Dimensions,
		product.Warranty,
		product.Origin,
		product.Shipping,
		product.Returns,
		product.Image,
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		return types.Product{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Product{}, err
	}
	if affected == 0 {
		return types.Product{}, ErrNotFound
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM products`
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (types.Product, error) {
	var product types.Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Description,
		&product.Category,
		&product.Brand,
		&product.SKU,
		&product.Stock,
		&product.Weight,
		&product.Dimensions,
		&product.Warranty,
		&product.Origin,
		&product.Shipping,
		&product.Returns,
		&product.Image,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
