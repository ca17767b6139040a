// Package notify delivers customer notifications. Delivery is fire-and-forget
// everywhere: failures are logged by the caller and never fail the operation
// that triggered them.
package notify

import "context"

// Event types published for an order.
const (
	EventOrderConfirmed = "order.confirmed"
	EventOrderShipped   = "order.shipped"
)

// Event is the notification payload.
type Event struct {
	Type        string `json:"type"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
	TrackingRef string `json:"tracking_ref,omitempty"`
}

// Notifier publishes an order notification event.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NopNotifier discards all events. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }
