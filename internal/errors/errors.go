package errors

import (
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrEmptyAuth    = errors.New("missing authorization")
	ErrEmptySubject = errors.New("missing subject")
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidProduct rejects addItem input with a missing id or a
	// negative price. The cart is left unchanged.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrItemNotFound is returned when an operation references an item id
	// absent from the cart where absence is semantically wrong.
	ErrItemNotFound = errors.New("item not found in cart")

	// ErrInvalidCoupon reports a coupon lookup miss. It is a user-input
	// condition, not a system fault; the active coupon is cleared.
	ErrInvalidCoupon = errors.New("invalid coupon code")

	// ErrTransientStore wraps persistence failures the session tolerates;
	// the in-memory cart stays authoritative for the session.
	ErrTransientStore = errors.New("transient persistence failure")

	// ErrCartCorrupted marks a persisted document that failed to parse;
	// the session degrades to an empty cart rather than crashing.
	ErrCartCorrupted = errors.New("persisted cart is corrupted")

	ErrCartEmpty = errors.New("cart is empty")
)

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
