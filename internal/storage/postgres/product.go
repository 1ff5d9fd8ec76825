package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bestdeal/internal/domain/product"
)

const (
	// The no-op update makes RETURNING yield the existing row on conflict,
	// so concurrent creators of the same name agree on one id.
	findOrCreateProductSQL = `INSERT INTO products (id, name, brand, category, image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	getProductByIDSQL = `SELECT id, name, brand, category, image_url, created_at
		FROM products WHERE id = $1`

	searchProductsSQL = `SELECT id, name, brand, category, image_url, created_at
		FROM products
		WHERE name ILIKE $1 OR brand ILIKE $1
		ORDER BY created_at DESC, id
		LIMIT $2`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// FindOrCreate returns the id of the product with exactly p.Name, creating
// it when missing.
func (r *ProductRepository) FindOrCreate(ctx context.Context, p product.NewProduct) (string, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, findOrCreateProductSQL,
		uuid.New(), p.Name, p.Brand, p.Category, p.ImageURL,
	).Scan(&id)
	if err != nil {
		return "", errors.Wrapf(err, "find or create product %q", p.Name)
	}
	return id.String(), nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, product.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, getProductByIDSQL, pid)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// Search returns products whose name or brand contains query,
// case-insensitively, newest first.
func (r *ProductRepository) Search(ctx context.Context, query string, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	out, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return out, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p  product.Product
		id uuid.UUID
	)
	err := row.Scan(&id, &p.Name, &p.Brand, &p.Category, &p.ImageURL, &p.CreatedAt)
	p.ID = id.String()
	return p, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
