package errors

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("order is owned by another user")
	ErrInvalidTransition = errors.New("status transition is not allowed")

	ErrEmptyAuth    = errors.New("missing authorization")
	ErrEmptySubject = errors.New("missing subject")
	ErrTokenInvalid = errors.New("invalid token")
)

// OutOfStock wraps ErrOutOfStock naming the offending product.
func OutOfStock(productName string, available int32, requested int32) error {
	return fmt.Errorf(
		"product=%s has insufficient stock available=%d requested=%d with error=%w",
		productName,
		available,
		requested,
		ErrOutOfStock,
	)
}

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
