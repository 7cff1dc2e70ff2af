package http

import (
	"errors"
	"net/http"

	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/order/pkg/status"
)

// StatusCodeFromError maps a domain error to the HTTP status the transport
// layer responds with. Unknown errors surface as 500.
func StatusCodeFromError(err error) int {
	switch {
	case errors.Is(err, inErrors.ErrInvalidQuantity),
		errors.Is(err, inErrors.ErrEmptyCart),
		errors.Is(err, status.ErrUnknown):
		return http.StatusBadRequest
	case errors.Is(err, inErrors.ErrOutOfStock),
		errors.Is(err, inErrors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, inErrors.ErrItemNotFound),
		errors.Is(err, inErrors.ErrCartNotFound),
		errors.Is(err, inErrors.ErrProductNotFound),
		errors.Is(err, inErrors.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, inErrors.ErrEmptyAuth),
		errors.Is(err, inErrors.ErrEmptySubject),
		errors.Is(err, inErrors.ErrTokenInvalid):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
