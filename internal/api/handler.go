// Package api exposes the HTTP surface: the public checkout operation, the
// gateway webhook, and the API-key-guarded admin operations. Handlers only
// map requests to domain calls and domain results back to responses.
package api

import (
	"net/http"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// SignatureVerifier checks the webhook payload signature before the
// confirmation event is dispatched.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// Handler wires the HTTP routes to the checkout service and dispatcher.
type Handler struct {
	checkout   *order.Service
	dispatcher *order.Dispatcher
	orders     order.Repository
	verifier   SignatureVerifier
	security   *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	checkout *order.Service,
	dispatcher *order.Dispatcher,
	orders order.Repository,
	verifier SignatureVerifier,
	security *SecurityHandler,
) *Handler {
	return &Handler{
		checkout:   checkout,
		dispatcher: dispatcher,
		orders:     orders,
		verifier:   verifier,
		security:   security,
	}
}

// Routes registers all API routes on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/payment/webhook", h.PaymentWebhook)

	mux.HandleFunc("GET /api/orders", h.security.Require(h.SearchOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.security.Require(h.GetOrder))
	mux.HandleFunc("POST /api/orders/{id}/status", h.security.Require(h.UpdateOrderStatus))
	mux.HandleFunc("POST /api/orders/{id}/dispatch", h.security.Require(h.DispatchOrder))
}
