package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/stock"
	"github.com/xenking/storefront-checkout/internal/notify"
)

func pendingCardOrder(env *testEnv, ref string) *Order {
	o := &Order{
		ID:            "ord-1",
		Number:        "SO-100001",
		Customer:      Customer{Name: "Ada Lovelace", Email: "ada@example.com"},
		PaymentRef:    ref,
		PaymentStatus: PaymentPending,
		Status:        StatusNew,
	}
	env.orders.byID[o.ID] = o
	env.orders.byRef[ref] = o
	return o
}

func TestConfirmPayment_Applies(t *testing.T) {
	env := newTestEnv()
	pendingCardOrder(env, "pi_123")
	env.commits.confirmRes = ConfirmResult{Applied: true}

	err := env.svc.ConfirmPayment(context.Background(), "pi_123")
	require.NoError(t, err)

	assert.Equal(t, []string{"pi_123"}, env.commits.confirmRefs)
	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, notify.EventOrderConfirmed, env.notifier.events[0].Type)
}

func TestConfirmPayment_ReplayIsNoOp(t *testing.T) {
	env := newTestEnv()
	pendingCardOrder(env, "pi_123")
	env.commits.confirmRes = ConfirmResult{Applied: false} // reference already processed

	err := env.svc.ConfirmPayment(context.Background(), "pi_123")
	require.NoError(t, err)

	assert.Empty(t, env.notifier.events, "a replayed event must not re-notify")
}

func TestConfirmPayment_UnknownReference(t *testing.T) {
	env := newTestEnv()

	err := env.svc.ConfirmPayment(context.Background(), "pi_unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmPayment_PaidButStockGone(t *testing.T) {
	env := newTestEnv()
	o := pendingCardOrder(env, "pi_123")
	env.commits.confirmRes = ConfirmResult{
		Applied: true,
		Shortfall: &stock.InsufficientError{
			Shortfalls: []stock.Shortfall{{VariantID: "v1", Requested: 2, Available: 0}},
		},
	}

	// The money has moved: the event is acknowledged, the order goes to
	// manual review, and no confirmation is sent out.
	err := env.svc.ConfirmPayment(context.Background(), "pi_123")
	require.NoError(t, err)

	assert.Equal(t, "paid but stock insufficient", env.orders.reviews[o.ID])
	assert.Empty(t, env.notifier.events)
}

func TestConfirmPayment_CommitFailure(t *testing.T) {
	env := newTestEnv()
	pendingCardOrder(env, "pi_123")
	env.commits.confirmErr = errors.New("deadlock detected")

	err := env.svc.ConfirmPayment(context.Background(), "pi_123")

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
}
