package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ametori/storefront/order/pkg/pricing"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{name: "below free shipping", subtotal: "25.00", tax: "2.50", shipping: "10", total: "37.50"},
		{name: "at free shipping threshold", subtotal: "100.00", tax: "10.00", shipping: "0", total: "110.00"},
		{name: "above free shipping threshold", subtotal: "150.00", tax: "15.00", shipping: "0", total: "165.00"},
		{name: "just below threshold", subtotal: "99.99", tax: "10.00", shipping: "10", total: "119.99"},
		{name: "tax rounds to cents", subtotal: "10.55", tax: "1.06", shipping: "10", total: "21.61"},
		{name: "empty subtotal", subtotal: "0", tax: "0", shipping: "10", total: "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := pricing.Compute(decimal.RequireFromString(tt.subtotal))
			assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString(tt.subtotal)), "subtotal=%s", totals.Subtotal)
			assert.True(t, totals.TaxAmount.Equal(decimal.RequireFromString(tt.tax)), "tax=%s", totals.TaxAmount)
			assert.True(t, totals.ShippingAmount.Equal(decimal.RequireFromString(tt.shipping)), "shipping=%s", totals.ShippingAmount)
			assert.True(t, totals.TotalAmount.Equal(decimal.RequireFromString(tt.total)), "total=%s", totals.TotalAmount)
		})
	}
}
