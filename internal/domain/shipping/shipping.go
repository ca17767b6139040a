// Package shipping holds the tagged shipping selection and the fulfillment
// dispatcher that hands orders to the external carrier.
package shipping

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Method discriminates the shipping selection variants.
type Method string

const (
	// MethodOffice ships to a carrier pickup point identified by code.
	MethodOffice Method = "office"
	// MethodAddress ships to a structured street address.
	MethodAddress Method = "address"
)

// Address is a structured delivery address. Never an opaque map.
type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

// Selection is the customer's shipping choice: exactly one of Office or
// Address is set, discriminated by Method.
type Selection struct {
	Method     Method   `json:"method"`
	OfficeCode string   `json:"office_code,omitempty"`
	Address    *Address `json:"address,omitempty"`
}

// Validate checks the selection is structurally complete for its method.
func (s Selection) Validate() error {
	switch s.Method {
	case MethodOffice:
		if s.OfficeCode == "" {
			return errors.New("office code required")
		}
	case MethodAddress:
		if s.Address == nil {
			return errors.New("address required")
		}
		a := s.Address
		if a.Street == "" || a.City == "" || a.Postcode == "" || a.Country == "" {
			return errors.New("address must have street, city, postcode and country")
		}
	default:
		return errors.Errorf("unknown shipping method: %q", s.Method)
	}
	return nil
}

// ShipmentRequest is what the carrier needs to create a shipment.
type ShipmentRequest struct {
	OrderNumber    string
	Selection      Selection
	RecipientName  string
	RecipientPhone string
	CashOnDelivery bool
}

// Shipment is the carrier's response: a tracking reference and an estimate.
type Shipment struct {
	TrackingRef       string
	EstimatedDelivery time.Time
}

// Carrier is the outbound port to the external carrier integration.
type Carrier interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error)
}
