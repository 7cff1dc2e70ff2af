// Package pricing folds the flat tax and shipping policy into order totals.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	taxRate               = decimal.NewFromFloat(0.10)
	flatShipping          = decimal.NewFromInt(10)
	freeShippingThreshold = decimal.NewFromInt(100)
)

type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Compute derives the order totals from the item subtotal: 10% tax, flat
// shipping waived at and above the free-shipping threshold.
func Compute(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(taxRate).Round(2)
	shipping := flatShipping
	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shipping,
		TotalAmount:    subtotal.Add(tax).Add(shipping),
	}
}
