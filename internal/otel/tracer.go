package otel

import (
	"go.opentelemetry.io/otel"

	"github.com/shopnest/cart/internal/constants"
)

var Tracer = otel.Tracer(constants.AppCartService)
