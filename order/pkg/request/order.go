package request

type Address struct {
	Line1      string `validate:"required" json:"line1"`
	Line2      string `                    json:"line2,omitempty"`
	City       string `validate:"required" json:"city"`
	State      string `validate:"required" json:"state"`
	PostalCode string `validate:"required" json:"postal_code"`
	Country    string `validate:"required" json:"country"`
}

type Checkout struct {
	ShippingAddress Address  `validate:"required"       json:"shipping_address"`
	BillingAddress  *Address `validate:"omitempty"      json:"billing_address,omitempty"`
	CustomerName    string   `validate:"required"       json:"customer_name"`
	CustomerEmail   string   `validate:"required,email" json:"customer_email"`
	CustomerPhone   string   `                          json:"customer_phone,omitempty"`
	PaymentMethod   string   `                          json:"payment_method,omitempty"`
}

type UpdateOrderStatus struct {
	Status string `validate:"required" json:"status"`
}

type UpdatePaymentStatus struct {
	PaymentStatus string `validate:"required" json:"payment_status"`
}
