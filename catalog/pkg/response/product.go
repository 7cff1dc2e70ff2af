package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Name          string          `json:"name"`
	Sku           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	ID            uuid.UUID       `json:"id"`
	StockQuantity int32           `json:"stock_quantity"`
}
