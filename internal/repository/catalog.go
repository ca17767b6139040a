package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
)

const (
	getVariantSQL = `SELECT product_id, variant_id, title, price
	FROM variants WHERE product_id = $1 AND variant_id = $2`

	upsertVariantSQL = `INSERT INTO variants (product_id, variant_id, title, price)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (product_id, variant_id) DO UPDATE SET title = $3, price = $4`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetVariant returns the canonical price and title for a variant.
// Returns catalog.ErrVariantNotFound when the pair is unknown.
func (r *CatalogRepository) GetVariant(ctx context.Context, productID, variantID string) (*catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("getting variant %q/%q: %w", productID, variantID, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrVariantNotFound
		}
		return nil, fmt.Errorf("getting variant %q/%q: %w", productID, variantID, err)
	}
	return &v, nil
}

// Upsert inserts or replaces a variant. Used by the seed tool.
func (r *CatalogRepository) Upsert(ctx context.Context, v catalog.Variant) error {
	_, err := r.pool.Exec(ctx, upsertVariantSQL, v.ProductID, v.VariantID, v.Title, v.Price)
	if err != nil {
		return fmt.Errorf("upserting variant %q/%q: %w", v.ProductID, v.VariantID, err)
	}
	return nil
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var v catalog.Variant
	err := row.Scan(&v.ProductID, &v.VariantID, &v.Title, &v.Price)
	return v, err
}
