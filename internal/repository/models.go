package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ametori/storefront/order/pkg/status"
)

type Product struct {
	ID            uuid.UUID
	Name          string
	Sku           string
	Price         pgtype.Numeric
	StockQuantity int32
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type Cart struct {
	ID            uuid.UUID
	UserID        *uuid.UUID
	SessionDigest []byte
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// CartItem carries the product name and sku from the catalog join; the
// unit price is the one captured when the line was first added.
type CartItem struct {
	ID             uuid.UUID
	CartID         uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	ProductSku     string
	Quantity       int32
	UnitPrice      pgtype.Numeric
	ProductOptions []byte
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type CartWithItems struct {
	Cart  Cart
	Items []CartItem
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID
	Status          status.Order
	PaymentStatus   status.Payment
	Subtotal        pgtype.Numeric
	TaxAmount       pgtype.Numeric
	ShippingAmount  pgtype.Numeric
	TotalAmount     pgtype.Numeric
	ShippingAddress Address
	BillingAddress  Address
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	PaymentMethod   string
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	ProductSku     string
	Quantity       int32
	UnitPrice      pgtype.Numeric
	ProductOptions []byte
	CreatedAt      pgtype.Timestamptz
}

type OrderWithItems struct {
	Order Order
	Items []OrderItem
}
