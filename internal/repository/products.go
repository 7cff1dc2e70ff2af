package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	inErrors "github.com/ametori/storefront/internal/errors"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const findProducts = `
SELECT id, name, sku, price, stock_quantity, created_at, updated_at
FROM products
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

const findProductById = `
SELECT id, name, sku, price, stock_quantity, created_at, updated_at
FROM products
WHERE id = $1
`

const insertProduct = `
INSERT INTO products (name, sku, price, stock_quantity)
VALUES ($1, $2, $3, $4)
RETURNING id, name, sku, price, stock_quantity, created_at, updated_at
`

func scanProduct(row pgx.Row) (Product, error) {
	product := Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Sku,
		&product.Price,
		&product.StockQuantity,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func (r *CatalogRepository) FindProducts(
	c context.Context,
	limit int32,
	offset int32,
) ([]Product, error) {
	rows, err := r.pool.Query(c, findProducts, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed finding products with error=%w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed scanning product with error=%w", err)
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating products with error=%w", err)
	}
	return products, nil
}

func (r *CatalogRepository) FindProductByID(c context.Context, productId uuid.UUID) (Product, error) {
	product, err := scanProduct(r.pool.QueryRow(c, findProductById, productId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, inErrors.ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("failed finding product with error=%w", err)
	}
	return product, nil
}

type InsertProductParams struct {
	Name          string
	Sku           string
	Price         pgtype.Numeric
	StockQuantity int32
}

func (r *CatalogRepository) InsertProduct(c context.Context, param InsertProductParams) (Product, error) {
	product, err := scanProduct(r.pool.QueryRow(
		c,
		insertProduct,
		param.Name,
		param.Sku,
		param.Price,
		param.StockQuantity,
	))
	if err != nil {
		return Product{}, fmt.Errorf("failed inserting product with error=%w", err)
	}
	return product, nil
}
