package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("checkout: cart is empty")
	ErrCheckoutInProgress = errors.New("checkout: already in progress")
	ErrNotSubmitting      = errors.New("checkout: no submission in flight")

	errEmptyAck = errors.New("empty response from order service")
)

// Messages shown to the user when a checkout fails.
const (
	MessageEmptyCart  = "Your cart is empty"
	MessageInProgress = "Your order is already being placed"
	MessageRejected   = "Order failed. Please try again."
	MessageTransport  = "Server error. Please try again later."
)

// OrderRejectedError is a structured refusal from the order service.
type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("checkout: order rejected: %s", e.Reason)
}

// TransportError wraps network, timeout and decoding failures.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("checkout: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage converts a checkout error into the text shown to the user.
func UserMessage(err error) string {
	var rejected *OrderRejectedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCart):
		return MessageEmptyCart
	case errors.Is(err, ErrCheckoutInProgress):
		return MessageInProgress
	case errors.As(err, &rejected):
		if rejected.Reason != "" {
			return rejected.Reason
		}
		return MessageRejected
	default:
		return MessageTransport
	}
}
