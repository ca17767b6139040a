package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/xenking/storefront-checkout/internal/domain/stock"
)

const (
	checkStockSQL = `SELECT variant_id, available, tracked
		FROM stock WHERE variant_id = ANY($1)`

	// The WHERE clause is the authority: the decrement applies only if the
	// counter can cover the quantity at UPDATE time, which closes the race
	// window between an earlier advisory check and the deduction.
	deductStockSQL = `UPDATE stock SET available = available - $2
		WHERE variant_id = $1 AND tracked AND available >= $2`

	getStockLineSQL = `SELECT available, tracked FROM stock WHERE variant_id = $1`

	setStockLevelSQL = `INSERT INTO stock (variant_id, available, low_stock_threshold, tracked)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (variant_id) DO UPDATE
		SET available = $2, low_stock_threshold = $3, tracked = $4`
)

// querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx,
// so deduction can run standalone or inside the checkout commit transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ stock.Ledger = (*StockRepository)(nil)

// StockRepository implements stock.Ledger backed by PostgreSQL.
type StockRepository struct {
	pool *pgxpool.Pool
}

// NewStockRepository returns a StockRepository that uses the given pool.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// Check reports current availability without reserving anything. Variants
// with no stock row or with tracking disabled always pass.
func (r *StockRepository) Check(ctx context.Context, items []stock.Item) (stock.Report, error) {
	ids := lo.Map(items, func(it stock.Item, _ int) string { return it.VariantID })

	rows, err := r.pool.Query(ctx, checkStockSQL, ids)
	if err != nil {
		return stock.Report{}, fmt.Errorf("checking stock: %w", err)
	}

	type line struct {
		VariantID string
		Available int
		Tracked   bool
	}
	fetched, err := pgx.CollectRows(rows, pgx.RowToStructByPos[line])
	if err != nil {
		return stock.Report{}, fmt.Errorf("checking stock: %w", err)
	}

	lines := make(map[string]line, len(fetched))
	for _, l := range fetched {
		lines[l.VariantID] = l
	}

	report := stock.Report{Available: true}
	for _, item := range items {
		l, ok := lines[item.VariantID]
		if !ok || !l.Tracked {
			continue
		}
		if l.Available < item.Quantity {
			report.Available = false
			report.Insufficient = append(report.Insufficient, stock.Shortfall{
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Available: l.Available,
			})
		}
	}
	return report, nil
}

// Deduct decrements available units for every item, all-or-nothing: the
// per-line conditional updates run inside one transaction that is rolled
// back when any line cannot be covered.
func (r *StockRepository) Deduct(ctx context.Context, items []stock.Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin deduct: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := deductItems(ctx, tx, items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit deduct: %w", err)
	}
	return nil
}

// deductItems applies the conditional decrement for every item on q. Returns
// *stock.InsufficientError listing every shortfall; the caller rolls back.
func deductItems(ctx context.Context, q querier, items []stock.Item) error {
	var shortfalls []stock.Shortfall
	for _, item := range items {
		tag, err := q.Exec(ctx, deductStockSQL, item.VariantID, item.Quantity)
		if err != nil {
			return fmt.Errorf("deducting stock for %q: %w", item.VariantID, err)
		}
		if tag.RowsAffected() > 0 {
			continue
		}

		// No row updated: untracked variants pass, tracked ones are short.
		available, tracked, err := stockLine(ctx, q, item.VariantID)
		if err != nil {
			return err
		}
		if !tracked {
			continue
		}
		shortfalls = append(shortfalls, stock.Shortfall{
			VariantID: item.VariantID,
			Requested: item.Quantity,
			Available: available,
		})
	}

	if len(shortfalls) > 0 {
		return &stock.InsufficientError{Shortfalls: shortfalls}
	}
	return nil
}

// stockLine fetches one counter. A missing row counts as untracked.
func stockLine(ctx context.Context, q querier, variantID string) (available int, tracked bool, err error) {
	rows, err := q.Query(ctx, getStockLineSQL, variantID)
	if err != nil {
		return 0, false, fmt.Errorf("reading stock for %q: %w", variantID, err)
	}

	type line struct {
		Available int
		Tracked   bool
	}
	l, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[line])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reading stock for %q: %w", variantID, err)
	}
	return l.Available, l.Tracked, nil
}

// SetLevel overwrites the stock line for a variant. Used by the seed tool
// and by warehouse sync jobs, never by checkout.
func (r *StockRepository) SetLevel(ctx context.Context, variantID string, available, lowStockThreshold int, tracked bool) error {
	if _, err := r.pool.Exec(ctx, setStockLevelSQL, variantID, available, lowStockThreshold, tracked); err != nil {
		return fmt.Errorf("setting stock level for %q: %w", variantID, err)
	}
	return nil
}
