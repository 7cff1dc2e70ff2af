package repository

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	cartResponse "github.com/ametori/storefront/cart/pkg/response"
	catalogResponse "github.com/ametori/storefront/catalog/pkg/response"
	orderResponse "github.com/ametori/storefront/order/pkg/response"
)

func (p Product) Response() catalogResponse.Product {
	return catalogResponse.Product{
		CreatedAt:     p.CreatedAt.Time,
		UpdatedAt:     p.UpdatedAt.Time,
		Name:          p.Name,
		Sku:           p.Sku,
		Price:         DecimalFromNumeric(p.Price),
		ID:            p.ID,
		StockQuantity: p.StockQuantity,
	}
}

func (i CartItem) Response() cartResponse.CartItem {
	unitPrice := DecimalFromNumeric(i.UnitPrice)
	return cartResponse.CartItem{
		CreatedAt:      i.CreatedAt.Time,
		UpdatedAt:      i.UpdatedAt.Time,
		ProductName:    i.ProductName,
		ProductSku:     i.ProductSku,
		ProductOptions: json.RawMessage(i.ProductOptions),
		UnitPrice:      unitPrice,
		LineTotal:      unitPrice.Mul(decimal.NewFromInt32(i.Quantity)),
		ID:             i.ID,
		CartId:         i.CartID,
		ProductId:      i.ProductID,
		Quantity:       i.Quantity,
	}
}

func (c CartWithItems) Response() cartResponse.Cart {
	items := make([]cartResponse.CartItem, 0, len(c.Items))
	subtotal := decimal.Zero
	totalItems := int32(0)
	for _, item := range c.Items {
		mapped := item.Response()
		subtotal = subtotal.Add(mapped.LineTotal)
		totalItems += mapped.Quantity
		items = append(items, mapped)
	}
	return cartResponse.Cart{
		CreatedAt:  c.Cart.CreatedAt.Time,
		UpdatedAt:  c.Cart.UpdatedAt.Time,
		CartItems:  items,
		Subtotal:   subtotal,
		ID:         c.Cart.ID,
		UserId:     c.Cart.UserID,
		TotalItems: totalItems,
	}
}

func (a Address) Response() orderResponse.Address {
	return orderResponse.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func (i OrderItem) Response() orderResponse.OrderItem {
	unitPrice := DecimalFromNumeric(i.UnitPrice)
	return orderResponse.OrderItem{
		CreatedAt:      i.CreatedAt.Time,
		ProductName:    i.ProductName,
		ProductSku:     i.ProductSku,
		ProductOptions: json.RawMessage(i.ProductOptions),
		UnitPrice:      unitPrice,
		LineTotal:      unitPrice.Mul(decimal.NewFromInt32(i.Quantity)),
		ID:             i.ID,
		OrderId:        i.OrderID,
		ProductId:      i.ProductID,
		Quantity:       i.Quantity,
	}
}

func (o OrderWithItems) Response() orderResponse.Order {
	items := make([]orderResponse.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, item.Response())
	}
	return orderResponse.Order{
		CreatedAt:       o.Order.CreatedAt.Time,
		UpdatedAt:       o.Order.UpdatedAt.Time,
		OrderItems:      items,
		OrderNumber:     o.Order.OrderNumber,
		Status:          string(o.Order.Status),
		PaymentStatus:   string(o.Order.PaymentStatus),
		CustomerName:    o.Order.CustomerName,
		CustomerEmail:   o.Order.CustomerEmail,
		CustomerPhone:   o.Order.CustomerPhone,
		PaymentMethod:   o.Order.PaymentMethod,
		ShippingAddress: o.Order.ShippingAddress.Response(),
		BillingAddress:  o.Order.BillingAddress.Response(),
		Subtotal:        DecimalFromNumeric(o.Order.Subtotal),
		TaxAmount:       DecimalFromNumeric(o.Order.TaxAmount),
		ShippingAmount:  DecimalFromNumeric(o.Order.ShippingAmount),
		TotalAmount:     DecimalFromNumeric(o.Order.TotalAmount),
		ID:              o.Order.ID,
		UserId:          o.Order.UserID,
	}
}
