package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/stock"
)

const (
	// ON CONFLICT DO NOTHING plus the returned tag is the idempotency
	// guard: only the first transaction to insert a payment reference
	// applies the commit side effects.
	recordPaymentEventSQL = `INSERT INTO payment_events (payment_ref) VALUES ($1)
		ON CONFLICT (payment_ref) DO NOTHING`

	confirmPaymentSQL = `UPDATE orders SET payment_status = 'paid',
		status = CASE WHEN status = 'new' THEN 'processing' ELSE status END,
		updated_at = now()
		WHERE id = $1`

	// Used when the payment arrived but stock could not cover the order:
	// the payment is recorded, the order does not advance to processing.
	holdPaidPaymentSQL = `UPDATE orders SET payment_status = 'paid', updated_at = now()
		WHERE id = $1`
)

var _ order.CommitStore = (*CheckoutTx)(nil)

// CheckoutTx implements order.CommitStore: the guaranteed-commit side effects
// of a checkout run inside a single database transaction, so a failure after
// stock deduction can never leave a half-committed order behind.
type CheckoutTx struct {
	pool *pgxpool.Pool
}

// NewCheckoutTx returns a CheckoutTx that uses the given pool.
func NewCheckoutTx(pool *pgxpool.Pool) *CheckoutTx {
	return &CheckoutTx{pool: pool}
}

// CommitCashOnDelivery deducts stock for all items and increments the
// discount usage counter in one transaction. On *stock.InsufficientError the
// transaction is rolled back and no counter moves.
func (c *CheckoutTx) CommitCashOnDelivery(ctx context.Context, o *order.Order) error {
	return c.inTx(ctx, func(tx pgx.Tx) error {
		if err := deductItems(ctx, tx, stockItems(o)); err != nil {
			return err
		}
		if o.DiscountCode != "" {
			if err := incrementUsage(ctx, tx, o.DiscountCode); err != nil {
				return err
			}
		}
		return nil
	})
}

// ConfirmCardPayment applies the deferred commit for a confirmed card
// payment. The payment_events insert keys the whole transaction by the
// payment reference: a redelivered confirmation sees the existing row and
// returns Applied=false without touching any counter.
//
// A stock shortfall does not fail the confirmation. The money has already
// moved, so the payment event and the paid flag commit regardless; the
// counter changes run inside a savepoint and roll back alone, and the
// shortfall is returned in the result for manual resolution.
func (c *CheckoutTx) ConfirmCardPayment(ctx context.Context, o *order.Order) (res order.ConfirmResult, err error) {
	err = c.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, recordPaymentEventSQL, o.PaymentRef)
		if err != nil {
			return fmt.Errorf("recording payment event %q: %w", o.PaymentRef, err)
		}
		if tag.RowsAffected() == 0 {
			// Already processed.
			return nil
		}
		res.Applied = true

		if err := applyCounters(ctx, tx, o); err != nil {
			var insufficient *stock.InsufficientError
			if !errors.As(err, &insufficient) {
				return err
			}
			res.Shortfall = insufficient
			if _, err := tx.Exec(ctx, holdPaidPaymentSQL, o.ID); err != nil {
				return fmt.Errorf("marking order %q paid on hold: %w", o.ID, err)
			}
			return nil
		}

		if _, err := tx.Exec(ctx, confirmPaymentSQL, o.ID); err != nil {
			return fmt.Errorf("marking order %q paid: %w", o.ID, err)
		}
		return nil
	})
	if err != nil {
		return order.ConfirmResult{}, err
	}
	return res, nil
}

// applyCounters deducts stock and increments the discount usage inside a
// savepoint, so partial deductions from a shortfall roll back without
// discarding the enclosing transaction.
func applyCounters(ctx context.Context, tx pgx.Tx, o *order.Order) (err error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = deductItems(ctx, sp, stockItems(o)); err != nil {
		return err
	}
	if o.DiscountCode != "" {
		if err = incrementUsage(ctx, sp, o.DiscountCode); err != nil {
			return err
		}
	}
	return sp.Commit(ctx)
}

// inTx runs fn inside a transaction with rollback on error.
func (c *CheckoutTx) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (txErr error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}

	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = fmt.Errorf("%w (rollback: %v)", txErr, rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}
	return nil
}

func stockItems(o *order.Order) []stock.Item {
	items := make([]stock.Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = stock.Item{VariantID: it.VariantID, Quantity: it.Quantity}
	}
	return items
}
