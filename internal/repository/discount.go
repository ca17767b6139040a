package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/discount"
)

const (
	getDiscountByCodeSQL = `SELECT code, kind, value, min_order_value, max_uses, used_count,
		starts_at, ends_at, active, scope, product_ids, variant_ids, description
		FROM discounts WHERE code = UPPER($1)`

	// Single conditional statement: the counter moves and the cap is
	// checked atomically, so used_count never exceeds max_uses even under
	// concurrent redemption.
	incrementUsageSQL = `UPDATE discounts SET used_count = used_count + 1
		WHERE code = $1 AND (max_uses = 0 OR used_count < max_uses)`

	insertDiscountSQL = `INSERT INTO discounts
		(code, kind, value, min_order_value, max_uses, starts_at, ends_at, active, scope, product_ids, variant_ids, description)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (code) DO NOTHING`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a rule by its code (canonicalized upper-case in SQL).
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Rule, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanDiscountRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &discount.RejectedError{Code: code, Reason: discount.ReasonNotFound}
		}
		return nil, fmt.Errorf("finding discount %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUsage atomically bumps the usage counter with its cap check.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) error {
	return incrementUsage(ctx, r.pool, code)
}

// Insert stores a new rule; duplicate codes are skipped. Used by the bulk
// promo ingest.
func (r *DiscountRepository) Insert(ctx context.Context, rule discount.Rule) error {
	_, err := r.pool.Exec(ctx, insertDiscountSQL,
		rule.Code, string(rule.Kind), rule.Value, rule.MinOrderValue, rule.MaxUses,
		rule.StartsAt, rule.EndsAt, rule.Active, string(rule.Scope),
		rule.ProductIDs, rule.VariantIDs, rule.Description,
	)
	if err != nil {
		return fmt.Errorf("inserting discount %q: %w", rule.Code, err)
	}
	return nil
}

// incrementUsage runs the conditional increment on q, which may be the pool
// or the checkout commit transaction.
func incrementUsage(ctx context.Context, q querier, code string) error {
	canonical := discount.Canonical(code)
	tag, err := q.Exec(ctx, incrementUsageSQL, canonical)
	if err != nil {
		return fmt.Errorf("incrementing usage for %q: %w", canonical, err)
	}
	if tag.RowsAffected() == 0 {
		return &discount.RejectedError{Code: canonical, Reason: discount.ReasonUsageLimitReached}
	}
	return nil
}

func scanDiscountRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rule          discount.Rule
		kind, scope   string
		value         decimal.Decimal
		minOrderValue decimal.Decimal
		startsAt      *time.Time
		endsAt        *time.Time
	)
	err := row.Scan(
		&rule.Code, &kind, &value, &minOrderValue, &rule.MaxUses, &rule.UsedCount,
		&startsAt, &endsAt, &rule.Active, &scope, &rule.ProductIDs, &rule.VariantIDs,
		&rule.Description,
	)
	rule.Kind = discount.Kind(kind)
	rule.Scope = discount.Scope(scope)
	rule.Value = value
	rule.MinOrderValue = minOrderValue
	rule.StartsAt = startsAt
	rule.EndsAt = endsAt
	return rule, err
}
