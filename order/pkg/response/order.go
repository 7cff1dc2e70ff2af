package response

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	OrderItems      []OrderItem     `json:"order_items"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ID              uuid.UUID       `json:"id"`
	UserId          uuid.UUID       `json:"user_id"`
}

type OrderItem struct {
	CreatedAt      time.Time       `json:"created_at"`
	ProductName    string          `json:"product_name"`
	ProductSku     string          `json:"product_sku"`
	ProductOptions json.RawMessage `json:"product_options,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	ID             uuid.UUID       `json:"id"`
	OrderId        uuid.UUID       `json:"order_id"`
	ProductId      uuid.UUID       `json:"product_id"`
	Quantity       int32           `json:"quantity"`
}
