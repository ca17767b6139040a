package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/notify"
)

type mockCarrier struct {
	shipment *shipping.Shipment
	err      error
	calls    int
	lastReq  shipping.ShipmentRequest
}

func (m *mockCarrier) CreateShipment(_ context.Context, req shipping.ShipmentRequest) (*shipping.Shipment, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.shipment, nil
}

func processingOrder(repo *mockOrderRepo) *Order {
	o := &Order{
		ID:            "ord-1",
		Number:        "SO-100001",
		Customer:      Customer{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+3591234"},
		Shipping:      shipping.Selection{Method: shipping.MethodOffice, OfficeCode: "OFF-17"},
		PaymentMethod: "cod",
		Status:        StatusProcessing,
	}
	repo.byID[o.ID] = o
	return o
}

func TestDispatch_CreatesShipment(t *testing.T) {
	repo := newMockOrderRepo()
	o := processingOrder(repo)
	eta := time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)
	carrier := &mockCarrier{shipment: &shipping.Shipment{TrackingRef: "TRK-42", EstimatedDelivery: eta}}
	notifier := &recordingNotifier{}
	d := NewDispatcher(repo, carrier, notifier)

	shipment, err := d.Dispatch(context.Background(), o.ID)
	require.NoError(t, err)

	assert.Equal(t, "TRK-42", shipment.TrackingRef)
	assert.Equal(t, eta, shipment.EstimatedDelivery)
	assert.Equal(t, "TRK-42", repo.shipments[o.ID])
	assert.True(t, carrier.lastReq.CashOnDelivery)
	assert.Equal(t, "SO-100001", carrier.lastReq.OrderNumber)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, notify.EventOrderShipped, notifier.events[0].Type)
	assert.Equal(t, "TRK-42", notifier.events[0].TrackingRef)
}

func TestDispatch_IdempotentPerOrder(t *testing.T) {
	repo := newMockOrderRepo()
	o := processingOrder(repo)
	eta := time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)
	o.TrackingRef = "TRK-42"
	o.EstimatedDelivery = &eta
	carrier := &mockCarrier{}
	d := NewDispatcher(repo, carrier, &recordingNotifier{})

	shipment, err := d.Dispatch(context.Background(), o.ID)
	require.NoError(t, err)

	assert.Equal(t, "TRK-42", shipment.TrackingRef)
	assert.Equal(t, eta, shipment.EstimatedDelivery)
	assert.Equal(t, 0, carrier.calls, "a dispatched order must not contact the carrier again")
}

func TestDispatch_IllegalState(t *testing.T) {
	repo := newMockOrderRepo()
	o := processingOrder(repo)
	o.Status = StatusDelivered
	d := NewDispatcher(repo, &mockCarrier{}, &recordingNotifier{})

	_, err := d.Dispatch(context.Background(), o.ID)

	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, string(StatusDelivered), trErr.From)
}

func TestDispatch_UnknownOrder(t *testing.T) {
	d := NewDispatcher(newMockOrderRepo(), &mockCarrier{}, &recordingNotifier{})

	_, err := d.Dispatch(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDispatch_CarrierFailure(t *testing.T) {
	repo := newMockOrderRepo()
	o := processingOrder(repo)
	carrier := &mockCarrier{err: errors.New("carrier timeout")}
	d := NewDispatcher(repo, carrier, &recordingNotifier{})

	_, err := d.Dispatch(context.Background(), o.ID)
	require.Error(t, err)
	assert.Empty(t, repo.shipments, "nothing persisted when the carrier call fails")
}
