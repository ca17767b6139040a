//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/stock"
)

func commitOrderFor(t *testing.T, variantID string, qty int, discountCode string) *order.Order {
	t.Helper()
	o := newStoredOrder(t, payment.MethodCashOnDelivery)
	o.Items = []order.Item{{ProductID: "p1", VariantID: variantID, Quantity: qty}}
	o.DiscountCode = discountCode
	return o
}

func TestCommitCashOnDelivery_DeductsAndIncrements(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)

	variantID := seedStockLine(t, 10, true)
	code := seedDiscount(t, 0)
	o := commitOrderFor(t, variantID, 3, code)

	require.NoError(t, commits.CommitCashOnDelivery(ctx, o))

	assert.Equal(t, 7, currentAvailable(t, variantID))
	assert.Equal(t, 1, usedCount(t, code))
}

func TestCommitCashOnDelivery_RollsBackOnShortfall(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)

	variantID := seedStockLine(t, 2, true)
	code := seedDiscount(t, 0)
	o := commitOrderFor(t, variantID, 5, code)

	err := commits.CommitCashOnDelivery(ctx, o)

	var insufficient *stock.InsufficientError
	require.ErrorAs(t, err, &insufficient)

	assert.Equal(t, 2, currentAvailable(t, variantID))
	assert.Equal(t, 0, usedCount(t, code), "the discount must not be consumed on a failed commit")
}

func TestCommitCashOnDelivery_RollsBackStockOnUsageCap(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)

	variantID := seedStockLine(t, 10, true)
	code := seedDiscount(t, 1)
	repo := NewDiscountRepository(testPool)
	require.NoError(t, repo.IncrementUsage(ctx, code)) // cap exhausted

	o := commitOrderFor(t, variantID, 3, code)
	err := commits.CommitCashOnDelivery(ctx, o)
	require.Error(t, err)

	assert.Equal(t, 10, currentAvailable(t, variantID), "stock deduction must roll back with the discount failure")
}

func TestConfirmCardPayment_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)
	orders := NewOrderRepository(testPool)

	variantID := seedStockLine(t, 10, true)
	code := seedDiscount(t, 0)
	o := commitOrderFor(t, variantID, 2, code)
	ref := "pi_" + uuid.NewString()
	require.NoError(t, orders.SetPaymentIntent(ctx, o.ID, ref))
	o.PaymentRef = ref

	res, err := commits.ConfirmCardPayment(ctx, o)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Nil(t, res.Shortfall)

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, 8, currentAvailable(t, variantID))
	assert.Equal(t, 1, usedCount(t, code))
}

func TestConfirmCardPayment_ReplayIsNoOp(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)
	orders := NewOrderRepository(testPool)

	variantID := seedStockLine(t, 10, true)
	code := seedDiscount(t, 0)
	o := commitOrderFor(t, variantID, 2, code)
	ref := "pi_" + uuid.NewString()
	require.NoError(t, orders.SetPaymentIntent(ctx, o.ID, ref))
	o.PaymentRef = ref

	res, err := commits.ConfirmCardPayment(ctx, o)
	require.NoError(t, err)
	require.True(t, res.Applied)

	res, err = commits.ConfirmCardPayment(ctx, o)
	require.NoError(t, err)
	assert.False(t, res.Applied, "a redelivered confirmation must not re-apply")

	assert.Equal(t, 8, currentAvailable(t, variantID), "stock deducted exactly once")
	assert.Equal(t, 1, usedCount(t, code), "usage incremented exactly once")
}

// Ten concurrent deliveries of the same confirmation: exactly one applies.
func TestConfirmCardPayment_ConcurrentRedelivery(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)
	orders := NewOrderRepository(testPool)

	variantID := seedStockLine(t, 10, true)
	o := commitOrderFor(t, variantID, 2, "")
	ref := "pi_" + uuid.NewString()
	require.NoError(t, orders.SetPaymentIntent(ctx, o.ID, ref))
	o.PaymentRef = ref

	appliedCount := make(chan bool, 10)
	g, gctx := errgroup.WithContext(ctx)
	for range 10 {
		g.Go(func() error {
			res, err := commits.ConfirmCardPayment(gctx, o)
			if err != nil {
				return err
			}
			appliedCount <- res.Applied
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(appliedCount)

	applied := 0
	for a := range appliedCount {
		if a {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 8, currentAvailable(t, variantID))
}

// A confirmed payment whose stock is gone is still recorded: the customer
// was charged, so the order is marked paid and held instead of bouncing the
// event back to the gateway.
func TestConfirmCardPayment_ShortfallRecordsPayment(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)
	orders := NewOrderRepository(testPool)

	variantID := seedStockLine(t, 1, true)
	code := seedDiscount(t, 0)
	o := commitOrderFor(t, variantID, 5, code)
	ref := "pi_" + uuid.NewString()
	require.NoError(t, orders.SetPaymentIntent(ctx, o.ID, ref))
	o.PaymentRef = ref

	res, err := commits.ConfirmCardPayment(ctx, o)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.NotNil(t, res.Shortfall)
	assert.Equal(t, variantID, res.Shortfall.Shortfalls[0].VariantID)

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus, "funds moved, the payment must be recorded")
	assert.Equal(t, order.StatusNew, got.Status, "a held order must not advance to processing")
	assert.Equal(t, 1, currentAvailable(t, variantID), "no stock moves on a shortfall")
	assert.Equal(t, 0, usedCount(t, code), "no usage moves on a shortfall")

	// The payment event committed, so a redelivery after restock stays a
	// no-op instead of re-applying.
	require.NoError(t, NewStockRepository(testPool).SetLevel(ctx, variantID, 5, 0, true))
	res, err = commits.ConfirmCardPayment(ctx, o)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 5, currentAvailable(t, variantID))
}

// One line covered, one short: the savepoint rolls back the covered line's
// deduction while the payment itself still commits.
func TestConfirmCardPayment_ShortfallRollsBackPartialDeduction(t *testing.T) {
	ctx := context.Background()
	commits := NewCheckoutTx(testPool)
	orders := NewOrderRepository(testPool)

	coveredID := seedStockLine(t, 10, true)
	shortID := seedStockLine(t, 1, true)
	o := newStoredOrder(t, payment.MethodCard)
	o.Items = []order.Item{
		{ProductID: "p1", VariantID: coveredID, Quantity: 2},
		{ProductID: "p1", VariantID: shortID, Quantity: 5},
	}
	ref := "pi_" + uuid.NewString()
	require.NoError(t, orders.SetPaymentIntent(ctx, o.ID, ref))
	o.PaymentRef = ref

	res, err := commits.ConfirmCardPayment(ctx, o)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.NotNil(t, res.Shortfall)

	assert.Equal(t, 10, currentAvailable(t, coveredID), "the covered line must roll back with the shortfall")
	assert.Equal(t, 1, currentAvailable(t, shortID))

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
}
