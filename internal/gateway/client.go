// Package gateway is the HTTP adapter to the external payment gateway. The
// gateway's internals are out of scope; this client only creates payment
// intents and verifies webhook signatures.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

// Config holds the gateway connection settings.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// Client implements payment.Gateway over the gateway's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a gateway client with an instrumented transport.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type intentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	OrderRef string `json:"order_ref"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
}

type intentResponse struct {
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret"`
}

// CreateIntent asks the gateway to open a payment intent for the given
// amount. The returned client secret is handed to the caller to complete the
// card payment; the reference keys the later confirmation event.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currencyCode string, customer payment.Customer, orderRef string) (*payment.Intent, error) {
	reqBody := intentRequest{
		Amount:   amount.StringFixed(2),
		Currency: currencyCode,
		OrderRef: orderRef,
	}
	reqBody.Customer.Name = customer.Name
	reqBody.Customer.Email = customer.Email

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "marshal intent request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/intents", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build intent request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}

	var ir intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, errors.Wrap(err, "decode intent response")
	}
	if ir.Reference == "" {
		return nil, errors.New("gateway returned empty intent reference")
	}

	return &payment.Intent{
		Reference:    ir.Reference,
		ClientSecret: ir.ClientSecret,
	}, nil
}

// VerifySignature checks the webhook HMAC-SHA256 signature in constant time.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
