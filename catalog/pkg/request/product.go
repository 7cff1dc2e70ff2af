package request

import "github.com/shopspring/decimal"

type CreateProduct struct {
	Name          string          `validate:"required"       json:"name"`
	Sku           string          `validate:"required"       json:"sku"`
	Price         decimal.Decimal `validate:"required"       json:"price"`
	StockQuantity int32           `validate:"gte=0"          json:"stock_quantity"`
}
