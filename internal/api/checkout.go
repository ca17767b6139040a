package api

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

type checkoutItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Items    []checkoutItemRequest `json:"items"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Shipping      shipping.Selection `json:"shipping"`
	PaymentMethod string             `json:"payment_method"`
	DiscountCode  string             `json:"discount_code"`
	Currency      string             `json:"currency"`
}

type checkoutResponse struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	PaymentMethod string `json:"payment_method"`
	ClientSecret  string `json:"client_secret,omitempty"`
}

// Checkout handles the submit-checkout operation.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "client_input", "malformed JSON body")
		return
	}

	items := make([]order.CheckoutItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.CheckoutItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}

	receipt, err := h.checkout.Checkout(r.Context(), order.CheckoutRequest{
		Items: items,
		Customer: order.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Shipping:      req.Shipping,
		PaymentMethod: payment.Method(req.PaymentMethod),
		DiscountCode:  req.DiscountCode,
		Currency:      req.Currency,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:       receipt.OrderID,
		OrderNumber:   receipt.OrderNumber,
		PaymentMethod: string(receipt.PaymentMethod),
		ClientSecret:  receipt.ClientSecret,
	})
}
