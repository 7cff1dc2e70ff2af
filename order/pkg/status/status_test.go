package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ametori/storefront/order/pkg/status"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    status.Order
		to      status.Order
		allowed bool
	}{
		{name: "pending to confirmed", from: status.OrderPending, to: status.OrderConfirmed, allowed: true},
		{name: "pending to cancelled", from: status.OrderPending, to: status.OrderCancelled, allowed: true},
		{name: "pending to shipped", from: status.OrderPending, to: status.OrderShipped, allowed: false},
		{name: "confirmed to processing", from: status.OrderConfirmed, to: status.OrderProcessing, allowed: true},
		{name: "confirmed to cancelled", from: status.OrderConfirmed, to: status.OrderCancelled, allowed: true},
		{name: "processing to shipped", from: status.OrderProcessing, to: status.OrderShipped, allowed: true},
		{name: "processing to cancelled", from: status.OrderProcessing, to: status.OrderCancelled, allowed: true},
		{name: "shipped to delivered", from: status.OrderShipped, to: status.OrderDelivered, allowed: true},
		{name: "shipped to cancelled", from: status.OrderShipped, to: status.OrderCancelled, allowed: false},
		{name: "delivered is terminal", from: status.OrderDelivered, to: status.OrderCancelled, allowed: false},
		{name: "cancelled is terminal", from: status.OrderCancelled, to: status.OrderPending, allowed: false},
		{name: "no skipping to delivered", from: status.OrderConfirmed, to: status.OrderDelivered, allowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderCancellable(t *testing.T) {
	assert.True(t, status.OrderPending.Cancellable())
	assert.True(t, status.OrderConfirmed.Cancellable())
	assert.True(t, status.OrderProcessing.Cancellable())
	assert.False(t, status.OrderShipped.Cancellable())
	assert.False(t, status.OrderDelivered.Cancellable())
	assert.False(t, status.OrderCancelled.Cancellable())
}

func TestPaymentTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    status.Payment
		to      status.Payment
		allowed bool
	}{
		{name: "pending to paid", from: status.PaymentPending, to: status.PaymentPaid, allowed: true},
		{name: "pending to failed", from: status.PaymentPending, to: status.PaymentFailed, allowed: true},
		{name: "pending to refunded", from: status.PaymentPending, to: status.PaymentRefunded, allowed: false},
		{name: "paid to refunded", from: status.PaymentPaid, to: status.PaymentRefunded, allowed: true},
		{name: "paid to failed", from: status.PaymentPaid, to: status.PaymentFailed, allowed: false},
		{name: "failed is terminal", from: status.PaymentFailed, to: status.PaymentPending, allowed: false},
		{name: "refunded is terminal", from: status.PaymentRefunded, to: status.PaymentPaid, allowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseOrder(t *testing.T) {
	parsed, err := status.ParseOrder("PROCESSING")
	require.NoError(t, err)
	assert.Equal(t, status.OrderProcessing, parsed)

	_, err = status.ParseOrder("processing")
	require.ErrorIs(t, err, status.ErrUnknown)

	_, err = status.ParseOrder("UNKNOWN")
	require.ErrorIs(t, err, status.ErrUnknown)
}

func TestParsePayment(t *testing.T) {
	parsed, err := status.ParsePayment("REFUNDED")
	require.NoError(t, err)
	assert.Equal(t, status.PaymentRefunded, parsed)

	_, err = status.ParsePayment("CHARGEBACK")
	require.ErrorIs(t, err, status.ErrUnknown)
}
