// Package status defines the order fulfillment and payment state machines.
// The two are independent: an order moves through fulfillment regardless of
// how its payment settles. Any edge not listed in a transition table is
// rejected.
package status

import (
	"errors"
	"fmt"
)

// ErrUnknown marks a status string outside either state machine.
var ErrUnknown = errors.New("unknown status")

type Order string

const (
	OrderPending    Order = "PENDING"
	OrderConfirmed  Order = "CONFIRMED"
	OrderProcessing Order = "PROCESSING"
	OrderShipped    Order = "SHIPPED"
	OrderDelivered  Order = "DELIVERED"
	OrderCancelled  Order = "CANCELLED"
)

var orderTransitions = map[Order][]Order{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

func (s Order) CanTransitionTo(next Order) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether the order may still be cancelled, which is
// only the case before shipment.
func (s Order) Cancellable() bool {
	return s.CanTransitionTo(OrderCancelled)
}

func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case OrderPending, OrderConfirmed, OrderProcessing,
		OrderShipped, OrderDelivered, OrderCancelled:
		return Order(s), nil
	}
	return "", fmt.Errorf("order status %q with error=%w", s, ErrUnknown)
}

type Payment string

const (
	PaymentPending  Payment = "PENDING"
	PaymentPaid     Payment = "PAID"
	PaymentFailed   Payment = "FAILED"
	PaymentRefunded Payment = "REFUNDED"
)

var paymentTransitions = map[Payment][]Payment{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {},
	PaymentRefunded: {},
}

func (s Payment) CanTransitionTo(next Payment) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParsePayment(s string) (Payment, error) {
	switch Payment(s) {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return Payment(s), nil
	}
	return "", fmt.Errorf("payment status %q with error=%w", s, ErrUnknown)
}
