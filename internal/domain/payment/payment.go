// Package payment defines the outbound Payment Gateway port. The gateway's
// internals are out of scope; the core only creates intents for card orders
// and later receives an asynchronous confirmation keyed by the intent
// reference.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Method is how the customer pays for an order.
type Method string

const (
	// MethodCard defers commit to an asynchronous payment confirmation.
	MethodCard Method = "card"
	// MethodCashOnDelivery commits stock and discount usage synchronously.
	MethodCashOnDelivery Method = "cod"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	return m == MethodCard || m == MethodCashOnDelivery
}

// Customer is the contact subset forwarded to the gateway.
type Customer struct {
	Name  string
	Email string
}

// Intent is a gateway-side record of an in-progress card charge.
type Intent struct {
	Reference    string
	ClientSecret string
}

// Gateway creates payment intents for card orders.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, customer Customer, orderRef string) (*Intent, error)
}

// GatewayError is terminal for the checkout attempt; the order stays pending
// for retry or cleanup.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
