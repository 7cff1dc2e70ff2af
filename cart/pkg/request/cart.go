package request

import (
	"encoding/json"

	"github.com/google/uuid"
)

type AddCartItem struct {
	ProductId      uuid.UUID       `validate:"required,uuid" json:"product_id"`
	Quantity       int32           `validate:"required"      json:"quantity"`
	ProductOptions json.RawMessage `                         json:"product_options,omitempty"`
}

type UpdateCartItem struct {
	Quantity int32 `validate:"gte=0" json:"quantity"`
}
