package response

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	CartItems  []CartItem      `json:"cart_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ID         uuid.UUID       `json:"id"`
	UserId     *uuid.UUID      `json:"user_id,omitempty"`
	TotalItems int32           `json:"total_items"`
}

type CartItem struct {
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ProductName    string          `json:"product_name"`
	ProductSku     string          `json:"product_sku"`
	ProductOptions json.RawMessage `json:"product_options,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	ID             uuid.UUID       `json:"id"`
	CartId         uuid.UUID       `json:"cart_id"`
	ProductId      uuid.UUID       `json:"product_id"`
	Quantity       int32           `json:"quantity"`
}
