// Package catalog exposes the authoritative variant price/title lookup used
// to re-price every checkout line. Client-submitted prices are display-only.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrVariantNotFound is returned when a product/variant pair does not exist.
var ErrVariantNotFound = errors.New("variant not found")

// Variant is a purchasable configuration of a product with its own price.
type Variant struct {
	ProductID string
	VariantID string
	Title     string
	Price     decimal.Decimal
}

// Repository defines read operations against the product catalog.
type Repository interface {
	// GetVariant returns the canonical price and title for a variant.
	// Returns ErrVariantNotFound when either the product or the variant
	// is unknown.
	GetVariant(ctx context.Context, productID, variantID string) (*Variant, error)
}

// MismatchError indicates a cart line references a product or variant that no
// longer exists in the catalog. The whole checkout is aborted; no partial
// orders are created.
type MismatchError struct {
	ProductID string
	VariantID string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("variant %s of product %s not found in catalog", e.VariantID, e.ProductID)
}
