package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/notify"
)

// ConfirmPayment handles the asynchronous payment-confirmation event from the
// gateway. It is safe under redelivery: the commit is keyed by the payment
// reference, so replaying the same event deducts stock and increments the
// discount usage exactly once.
func (s *Service) ConfirmPayment(ctx context.Context, paymentRef string) error {
	o, err := s.orders.GetByPaymentRef(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "load order by payment ref", Err: err}
	}

	res, err := s.commits.ConfirmCardPayment(ctx, o)
	if err != nil {
		return &PersistenceError{Op: "confirm payment", Err: err}
	}

	if !res.Applied {
		zctx.From(ctx).Info("Payment confirmation replayed, no-op",
			zap.String("payment_ref", paymentRef),
			zap.String("order_id", o.ID),
		)
		return nil
	}

	if res.Shortfall != nil {
		// Payment succeeded but the units are gone. The money has moved,
		// so the order is recorded paid and a human resolves it (refund
		// or restock). The event is acknowledged: redelivering it cannot
		// produce the missing stock.
		if reviewErr := s.orders.MarkReview(ctx, o.ID, "paid but stock insufficient"); reviewErr != nil {
			zctx.From(ctx).Error("Mark review failed",
				zap.String("order_id", o.ID), zap.Error(reviewErr))
		}
		zctx.From(ctx).Warn("Payment confirmed without stock cover",
			zap.String("order_id", o.ID),
			zap.String("payment_ref", paymentRef),
			zap.Error(res.Shortfall),
		)
		return nil
	}

	s.notifyEvent(ctx, o, notify.EventOrderConfirmed, "")
	return nil
}
