package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

type orderResponse struct {
	ID                string              `json:"id"`
	Number            string              `json:"number"`
	CustomerName      string              `json:"customer_name"`
	CustomerEmail     string              `json:"customer_email"`
	Subtotal          string              `json:"subtotal"`
	ShippingPrice     string              `json:"shipping_price"`
	DiscountCode      string              `json:"discount_code,omitempty"`
	DiscountAmount    string              `json:"discount_amount"`
	Total             string              `json:"total"`
	Currency          string              `json:"currency"`
	PaymentMethod     string              `json:"payment_method"`
	PaymentStatus     string              `json:"payment_status"`
	Status            string              `json:"status"`
	TrackingRef       string              `json:"tracking_ref,omitempty"`
	ReviewReason      string              `json:"review_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery,omitempty"`
	Items             []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		Number:            o.Number,
		CustomerName:      o.Customer.Name,
		CustomerEmail:     o.Customer.Email,
		Subtotal:          o.Subtotal.StringFixed(2),
		ShippingPrice:     o.ShippingPrice.StringFixed(2),
		DiscountCode:      o.DiscountCode,
		DiscountAmount:    o.DiscountAmount.StringFixed(2),
		Total:             o.Total.StringFixed(2),
		Currency:          o.Currency,
		PaymentMethod:     string(o.PaymentMethod),
		PaymentStatus:     string(o.PaymentStatus),
		Status:            string(o.Status),
		TrackingRef:       o.TrackingRef,
		ReviewReason:      o.ReviewReason,
		CreatedAt:         o.CreatedAt,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
		EstimatedDelivery: o.EstimatedDelivery,
	}
	resp.Items = make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
		}
	}
	return resp
}

// GetOrder returns a single order by ID.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// SearchOrders lists orders matching the query filters.
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := order.SearchFilter{Limit: 50}
	if v := q.Get("status"); v != "" {
		status, err := order.ToStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "client_input", err.Error())
			return
		}
		filter.Status = status
	}
	if v := q.Get("payment_status"); v != "" {
		status, err := order.ToPaymentStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "client_input", err.Error())
			return
		}
		filter.PaymentStatus = status
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	orders, err := h.orders.Search(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus applies an admin status transition, enforced against the
// legal-transition table before anything is written.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "client_input", "malformed JSON body")
		return
	}

	target, err := order.ToStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "client_input", err.Error())
		return
	}

	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := o.Transition(target); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.orders.UpdateStatus(r.Context(), o.ID, target); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type dispatchResponse struct {
	TrackingRef       string    `json:"tracking_ref"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

// DispatchOrder hands the order to the carrier. Idempotent per order.
func (h *Handler) DispatchOrder(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.dispatcher.Dispatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{
		TrackingRef:       shipment.TrackingRef,
		EstimatedDelivery: shipment.EstimatedDelivery,
	})
}
