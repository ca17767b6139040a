// Package carrier is the HTTP adapter to the external shipping carrier.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

var _ shipping.Carrier = (*Client)(nil)

// Config holds the carrier connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements shipping.Carrier over the carrier's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a carrier client with an instrumented transport.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type shipmentRequest struct {
	OrderNumber    string            `json:"order_number"`
	Method         string            `json:"method"`
	OfficeCode     string            `json:"office_code,omitempty"`
	Address        *shipping.Address `json:"address,omitempty"`
	RecipientName  string            `json:"recipient_name"`
	RecipientPhone string            `json:"recipient_phone"`
	CashOnDelivery bool              `json:"cash_on_delivery"`
}

type shipmentResponse struct {
	TrackingNumber    string    `json:"tracking_number"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

// CreateShipment requests a shipment and label from the carrier.
func (c *Client) CreateShipment(ctx context.Context, req shipping.ShipmentRequest) (*shipping.Shipment, error) {
	body := shipmentRequest{
		OrderNumber:    req.OrderNumber,
		Method:         string(req.Selection.Method),
		OfficeCode:     req.Selection.OfficeCode,
		Address:        req.Selection.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		CashOnDelivery: req.CashOnDelivery,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal shipment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/shipments", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build shipment request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call carrier")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("carrier returned %d: %s", resp.StatusCode, respBody)
	}

	var sr shipmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, "decode shipment response")
	}
	if sr.TrackingNumber == "" {
		return nil, errors.New("carrier returned empty tracking number")
	}

	return &shipping.Shipment{
		TrackingRef:       sr.TrackingNumber,
		EstimatedDelivery: sr.EstimatedDelivery,
	}, nil
}
