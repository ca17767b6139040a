package order

import (
	"context"
	"net/mail"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
	"github.com/xenking/storefront-checkout/internal/domain/discount"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/domain/stock"
	"github.com/xenking/storefront-checkout/internal/notify"
)

const (
	minQuantity = 1
	maxQuantity = 20
)

// Config holds the pricing policy knobs of the checkout flow.
type Config struct {
	// FreeShippingThreshold forces shipping price to zero for subtotals at
	// or above it.
	FreeShippingThreshold decimal.Decimal
	// ShippingPrices is the server-side price per shipping method. Client
	// submitted shipping prices are never trusted.
	ShippingPrices map[shipping.Method]decimal.Decimal
	// DefaultCurrency is used when the request does not name one.
	DefaultCurrency string
}

// CheckoutItem is one untrusted cart line. Any client-supplied price or title
// is display-only and ignored.
type CheckoutItem struct {
	ProductID string
	VariantID string
	Quantity  int
}

// CheckoutRequest is the input of the submit-checkout operation.
type CheckoutRequest struct {
	Items         []CheckoutItem
	Customer      Customer
	Shipping      shipping.Selection
	PaymentMethod payment.Method
	DiscountCode  string
	Currency      string
}

// Receipt is returned to the caller on success. ClientSecret is set only for
// card orders and carries the means to complete payment.
type Receipt struct {
	OrderID       string
	OrderNumber   string
	PaymentMethod payment.Method
	ClientSecret  string
}

// Service composes the catalog, stock ledger, discount evaluator, order
// store, payment gateway and notifier into the checkout operation.
type Service struct {
	catalog   catalog.Repository
	ledger    stock.Ledger
	discounts discount.Validator
	orders    Repository
	commits   CommitStore
	gateway   payment.Gateway
	notifier  notify.Notifier
	cfg       Config
}

// NewService creates the checkout Service with its collaborators.
func NewService(
	cfg Config,
	catalogRepo catalog.Repository,
	ledger stock.Ledger,
	discounts discount.Validator,
	orders Repository,
	commits CommitStore,
	gateway payment.Gateway,
	notifier notify.Notifier,
) *Service {
	return &Service{
		catalog:   catalogRepo,
		ledger:    ledger,
		discounts: discounts,
		orders:    orders,
		commits:   commits,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Checkout converts an untrusted cart into a priced, stock-verified,
// discount-adjusted order and drives the payment-method branch.
//
// Every price is recomputed server-side from the catalog. An invalid discount
// code is dropped and the checkout proceeds at full price; that is policy,
// not an omission. The early stock check is advisory: availability authority
// lives in the conditional deduction at commit time.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Receipt, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	items, subtotal, err := s.reprice(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	shippingPrice := s.shippingPrice(req.Shipping.Method, subtotal)

	discountCode, discountAmount := s.applyDiscount(ctx, req.DiscountCode, subtotal, req.Items)

	stockItems := deductionItems(items)
	report, err := s.ledger.Check(ctx, stockItems)
	if err != nil {
		return nil, &PersistenceError{Op: "stock check", Err: err}
	}
	if !report.Available {
		return nil, &stock.InsufficientError{Shortfalls: report.Insufficient}
	}

	o := &Order{
		ID:             uuid.New().String(),
		Customer:       req.Customer,
		Shipping:       req.Shipping,
		Items:          items,
		Subtotal:       subtotal,
		ShippingPrice:  shippingPrice,
		DiscountCode:   discountCode,
		DiscountAmount: discountAmount,
		Total:          subtotal.Add(shippingPrice).Sub(discountAmount).Round(2),
		Currency:       req.Currency,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  PaymentPending,
		Status:         StatusNew,
	}
	if err := s.orders.Insert(ctx, o); err != nil {
		return nil, &PersistenceError{Op: "insert order", Err: err}
	}

	clientSecret := ""
	switch req.PaymentMethod {
	case payment.MethodCashOnDelivery:
		if err := s.commitCashOnDelivery(ctx, o); err != nil {
			return nil, err
		}
	case payment.MethodCard:
		secret, err := s.createIntent(ctx, o)
		if err != nil {
			return nil, err
		}
		clientSecret = secret
	}

	return &Receipt{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		PaymentMethod: o.PaymentMethod,
		ClientSecret:  clientSecret,
	}, nil
}

// validate rejects malformed input before any side effect.
func (s *Service) validate(req *CheckoutRequest) error {
	if len(req.Items) == 0 {
		return &InvalidInputError{Field: "items", Msg: "at least one item required"}
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.VariantID == "" {
			return &InvalidInputError{Field: "items", Msg: "product and variant ids required"}
		}
		if item.Quantity < minQuantity || item.Quantity > maxQuantity {
			return &InvalidInputError{Field: "items", Msg: "quantity must be between 1 and 20"}
		}
	}

	if req.Customer.Name == "" {
		return &InvalidInputError{Field: "customer.name", Msg: "required"}
	}
	if _, err := mail.ParseAddress(req.Customer.Email); err != nil {
		return &InvalidInputError{Field: "customer.email", Msg: "invalid email address"}
	}

	if err := req.Shipping.Validate(); err != nil {
		return &InvalidInputError{Field: "shipping", Msg: err.Error()}
	}
	if _, ok := s.cfg.ShippingPrices[req.Shipping.Method]; !ok {
		return &InvalidInputError{Field: "shipping.method", Msg: "no price configured for method"}
	}

	if !req.PaymentMethod.Valid() {
		return &InvalidInputError{Field: "payment_method", Msg: "must be card or cod"}
	}

	if req.Currency == "" {
		req.Currency = s.cfg.DefaultCurrency
	}
	if _, err := currency.ParseISO(req.Currency); err != nil {
		return &InvalidInputError{Field: "currency", Msg: "unknown ISO 4217 code"}
	}
	return nil
}

// reprice fetches the canonical price and title for every line and freezes
// them into the order snapshot. A missing variant aborts the whole checkout.
func (s *Service) reprice(ctx context.Context, lines []CheckoutItem) ([]Item, decimal.Decimal, error) {
	items := make([]Item, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		v, err := s.catalog.GetVariant(ctx, line.ProductID, line.VariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrVariantNotFound) {
				return nil, decimal.Zero, &catalog.MismatchError{
					ProductID: line.ProductID,
					VariantID: line.VariantID,
				}
			}
			return nil, decimal.Zero, &PersistenceError{Op: "catalog lookup", Err: err}
		}

		items[i] = Item{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Title:     v.Title,
			UnitPrice: v.Price,
			Quantity:  line.Quantity,
		}
		subtotal = subtotal.Add(v.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return items, subtotal.Round(2), nil
}

// shippingPrice resolves the server-side price for the method, forcing zero
// once the subtotal crosses the free-shipping threshold.
func (s *Service) shippingPrice(method shipping.Method, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(s.cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.cfg.ShippingPrices[method]
}

// applyDiscount re-validates the code against the current subtotal and rules.
// Any rejection or lookup failure degrades to no-discount: the purchase is
// never blocked by a bad code.
func (s *Service) applyDiscount(ctx context.Context, code string, subtotal decimal.Decimal, lines []CheckoutItem) (string, decimal.Decimal) {
	if code == "" {
		return "", decimal.Zero
	}

	cart := discount.Cart{
		Subtotal:   subtotal,
		ProductIDs: lo.Uniq(lo.Map(lines, func(l CheckoutItem, _ int) string { return l.ProductID })),
		VariantIDs: lo.Uniq(lo.Map(lines, func(l CheckoutItem, _ int) string { return l.VariantID })),
	}

	applied, err := s.discounts.Validate(ctx, code, cart)
	if err != nil {
		zctx.From(ctx).Info("Discount dropped",
			zap.String("code", discount.Canonical(code)),
			zap.Error(err),
		)
		return "", decimal.Zero
	}
	return applied.Code, applied.Amount
}

// commitCashOnDelivery runs the synchronous commit: conditional stock
// deduction plus discount increment in one durable transaction, then a
// fire-and-forget confirmation.
func (s *Service) commitCashOnDelivery(ctx context.Context, o *Order) error {
	if err := s.commits.CommitCashOnDelivery(ctx, o); err != nil {
		var insufficient *stock.InsufficientError
		if errors.As(err, &insufficient) {
			// The advisory check passed but a concurrent checkout won the
			// units. The created order is cancelled, not left dangling.
			if cancelErr := s.orders.UpdateStatus(ctx, o.ID, StatusCancelled); cancelErr != nil {
				zctx.From(ctx).Error("Cancel after stock rejection failed",
					zap.String("order_id", o.ID), zap.Error(cancelErr))
			}
			return insufficient
		}

		if reviewErr := s.orders.MarkReview(ctx, o.ID, "cod commit failed: "+err.Error()); reviewErr != nil {
			zctx.From(ctx).Error("Mark review failed",
				zap.String("order_id", o.ID), zap.Error(reviewErr))
		}
		return &PersistenceError{Op: "cod commit", Err: err}
	}

	s.notifyEvent(ctx, o, notify.EventOrderConfirmed, "")
	return nil
}

// createIntent asks the gateway for a payment intent and attaches its
// reference to the order. Stock is not touched here; the deduction happens in
// the asynchronous confirmation. The client secret travels back to the caller
// and is never persisted.
func (s *Service) createIntent(ctx context.Context, o *Order) (string, error) {
	intent, err := s.gateway.CreateIntent(ctx, o.Total, o.Currency, payment.Customer{
		Name:  o.Customer.Name,
		Email: o.Customer.Email,
	}, o.Number)
	if err != nil {
		// The order stays pending for retry or cleanup.
		return "", &payment.GatewayError{Err: err}
	}

	if err := s.orders.SetPaymentIntent(ctx, o.ID, intent.Reference); err != nil {
		if reviewErr := s.orders.MarkReview(ctx, o.ID, "intent created but not attached: "+intent.Reference); reviewErr != nil {
			zctx.From(ctx).Error("Mark review failed",
				zap.String("order_id", o.ID), zap.Error(reviewErr))
		}
		return "", &PersistenceError{Op: "attach payment intent", Err: err}
	}

	o.PaymentRef = intent.Reference
	return intent.ClientSecret, nil
}

// notifyEvent sends a notification and only logs failures.
func (s *Service) notifyEvent(ctx context.Context, o *Order, eventType, trackingRef string) {
	err := s.notifier.Notify(ctx, notify.Event{
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Email:       o.Customer.Email,
		Total:       o.Total.StringFixed(2),
		Currency:    o.Currency,
		TrackingRef: trackingRef,
	})
	if err != nil {
		zctx.From(ctx).Warn("Notification failed",
			zap.String("order_id", o.ID),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}

func deductionItems(items []Item) []stock.Item {
	return lo.Map(items, func(it Item, _ int) stock.Item {
		return stock.Item{VariantID: it.VariantID, Quantity: it.Quantity}
	})
}
