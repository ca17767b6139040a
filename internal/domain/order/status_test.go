package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusProcessing, true},
		{StatusNew, StatusCancelled, true},
		{StatusNew, StatusShipped, false},
		{StatusNew, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusNew, false},
		{StatusCancelled, StatusProcessing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCanTransitionPayment(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentPending, false},
		{PaymentFailed, PaymentPaid, false},
		{PaymentRefunded, PaymentPaid, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionPayment(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrderTransition(t *testing.T) {
	o := &Order{Status: StatusNew}

	require.NoError(t, o.Transition(StatusProcessing))
	assert.Equal(t, StatusProcessing, o.Status)

	err := o.Transition(StatusNew)
	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusProcessing, o.Status, "a rejected transition leaves the order untouched")
}

func TestOrderTransitionPayment(t *testing.T) {
	o := &Order{PaymentStatus: PaymentPending}

	require.NoError(t, o.TransitionPayment(PaymentPaid))
	require.NoError(t, o.TransitionPayment(PaymentRefunded))

	err := o.TransitionPayment(PaymentPaid)
	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
}

func TestToStatus(t *testing.T) {
	s, err := ToStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ToStatus("teleported")
	require.Error(t, err)
}

func TestToPaymentStatus(t *testing.T) {
	s, err := ToPaymentStatus("refunded")
	require.NoError(t, err)
	assert.Equal(t, PaymentRefunded, s)

	_, err = ToPaymentStatus("gratis")
	require.Error(t, err)
}
