package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/domain/stock"
)

// Customer holds the contact fields captured at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Item is a line-item snapshot frozen at order creation. Title and UnitPrice
// are copied from the catalog at checkout time and never re-derived, even if
// catalog prices later change.
type Item struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is the aggregate created once per checkout. It is never deleted and
// mutates only via status transitions; items and pricing are immutable.
type Order struct {
	ID       string
	Number   string
	Customer Customer
	Shipping shipping.Selection

	Items          []Item
	Subtotal       decimal.Decimal
	ShippingPrice  decimal.Decimal
	DiscountCode   string
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	Currency       string

	PaymentMethod payment.Method
	PaymentStatus PaymentStatus
	Status        Status

	PaymentRef   string
	TrackingRef  string
	ReviewReason string

	CreatedAt         time.Time
	UpdatedAt         time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
	EstimatedDelivery *time.Time
}

// SearchFilter narrows admin order listings. Zero values mean "any".
type SearchFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (*Order, error)

	// UpdateStatus persists a status change that has already passed the
	// transition table check.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// SetPaymentIntent attaches the gateway reference to a card order.
	SetPaymentIntent(ctx context.Context, id, paymentRef string) error

	// SetShipment records the carrier tracking reference and estimate and
	// moves the order to shipped in one statement.
	SetShipment(ctx context.Context, id, trackingRef string, estimatedDelivery time.Time) error

	// MarkReview flags an order for manual review after a post-creation
	// side effect failed. The flag surfaces the problem instead of
	// presenting a false success.
	MarkReview(ctx context.Context, id, reason string) error

	Search(ctx context.Context, filter SearchFilter) ([]Order, error)
}

// CommitStore executes the guaranteed-commit side effects (conditional stock
// deduction, discount usage increment, order/payment updates) inside a single
// durable transaction.
type CommitStore interface {
	// CommitCashOnDelivery deducts stock for all items and increments the
	// discount usage counter in one transaction. Returns
	// *stock.InsufficientError when any line cannot be covered; in that
	// case nothing is changed.
	CommitCashOnDelivery(ctx context.Context, o *Order) error

	// ConfirmCardPayment applies the deferred commit for a confirmed card
	// payment: stock deduction, discount increment, payment=paid and
	// status advance, all in one transaction keyed idempotently by the
	// payment reference. Applied is false when the reference was already
	// processed, so gateway redeliveries are a no-op. When stock cannot
	// cover the order the payment is still recorded and marked paid
	// (the money has moved); only the counters stay untouched and the
	// shortfall is reported in the result.
	ConfirmCardPayment(ctx context.Context, o *Order) (ConfirmResult, error)
}

// ConfirmResult reports how a payment confirmation was applied.
type ConfirmResult struct {
	// Applied is false when the payment reference was already processed.
	Applied bool
	// Shortfall is set when the payment was recorded but stock could not
	// be deducted. The order is paid, held for manual resolution.
	Shortfall *stock.InsufficientError
}
