package otel

import (
	"go.opentelemetry.io/otel"

	"github.com/ametori/storefront/internal/constants"
)

var Tracer = otel.Tracer(constants.AppOrderService)
