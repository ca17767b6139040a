package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/notify"
)

// Dispatcher hands an order to the external carrier and records the tracking
// reference.
type Dispatcher struct {
	orders   Repository
	carrier  shipping.Carrier
	notifier notify.Notifier
}

// NewDispatcher creates a Dispatcher with its collaborators.
func NewDispatcher(orders Repository, carrier shipping.Carrier, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		orders:   orders,
		carrier:  carrier,
		notifier: notifier,
	}
}

// Dispatch requests a shipment for the order, persists the tracking reference
// and estimated delivery, and transitions the order to shipped. It is
// idempotent per order: an order that already carries a tracking reference is
// returned as-is without contacting the carrier again.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID string) (*shipping.Shipment, error) {
	o, err := d.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "load order", Err: err}
	}

	if o.TrackingRef != "" {
		shipment := &shipping.Shipment{TrackingRef: o.TrackingRef}
		if o.EstimatedDelivery != nil {
			shipment.EstimatedDelivery = *o.EstimatedDelivery
		}
		return shipment, nil
	}

	if !CanTransition(o.Status, StatusShipped) {
		return nil, &TransitionError{From: string(o.Status), To: string(StatusShipped)}
	}

	shipment, err := d.carrier.CreateShipment(ctx, shipping.ShipmentRequest{
		OrderNumber:    o.Number,
		Selection:      o.Shipping,
		RecipientName:  o.Customer.Name,
		RecipientPhone: o.Customer.Phone,
		CashOnDelivery: o.PaymentMethod == payment.MethodCashOnDelivery,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create shipment")
	}

	if err := d.orders.SetShipment(ctx, o.ID, shipment.TrackingRef, shipment.EstimatedDelivery); err != nil {
		return nil, &PersistenceError{Op: "record shipment", Err: err}
	}

	d.notifyShipped(ctx, o, shipment.TrackingRef)
	return shipment, nil
}

// notifyShipped follows the same fire-and-forget policy as confirmation.
func (d *Dispatcher) notifyShipped(ctx context.Context, o *Order, trackingRef string) {
	err := d.notifier.Notify(ctx, notify.Event{
		Type:        notify.EventOrderShipped,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Email:       o.Customer.Email,
		Total:       o.Total.StringFixed(2),
		Currency:    o.Currency,
		TrackingRef: trackingRef,
	})
	if err != nil {
		zctx.From(ctx).Warn("Shipping notification failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}
