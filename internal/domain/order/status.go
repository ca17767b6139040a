package order

import "fmt"

// Status is the fulfillment lifecycle of an order. It is tracked
// independently of PaymentStatus: a card order can be paid while still new,
// and a cash-on-delivery order ships while payment is pending.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus is the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// statusTransitions is the legal-transition table for Status. Every write,
// admin-triggered or event-driven, goes through it.
var statusTransitions = map[Status][]Status{
	StatusNew:        {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {},
	PaymentRefunded: {},
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %q to %q", e.From, e.To)
}

// ToStatus parses s, rejecting unknown values.
func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := statusTransitions[status]; !ok {
		return "", fmt.Errorf("unknown order status: %q", s)
	}
	return status, nil
}

// ToPaymentStatus parses s, rejecting unknown values.
func ToPaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if _, ok := paymentTransitions[status]; !ok {
		return "", fmt.Errorf("unknown payment status: %q", s)
	}
	return status, nil
}

// CanTransition reports whether from→to is in the legal-transition table.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether from→to is a legal payment change.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition applies a status change to the in-memory aggregate, enforcing
// the table. Persistence happens separately; no transition mutates items or
// pricing.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: string(o.Status), To: string(to)}
	}
	o.Status = to
	return nil
}

// TransitionPayment applies a payment status change, enforcing the table.
func (o *Order) TransitionPayment(to PaymentStatus) error {
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return &TransitionError{From: string(o.PaymentStatus), To: string(to)}
	}
	o.PaymentStatus = to
	return nil
}
