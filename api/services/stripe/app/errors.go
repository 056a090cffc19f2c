package app

import "errors"

// Typed errors for the Stripe app layer. These enable HTTP mapping without
// relying on SDK-specific error types at the transport layer.
var (
	// ErrUnknownProduct indicates the requested product is not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidRequest indicates a request failed field validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBadSignature indicates the webhook payload failed signature verification.
	ErrBadSignature = errors.New("bad signature")
	// ErrCustomer indicates the Stripe customer could not be resolved or created.
	ErrCustomer = errors.New("customer error")
	// ErrGateway indicates a failure from the Stripe gateway / API calls.
	ErrGateway = errors.New("gateway error")
)

// Error pairs one of the kinds above with the message shown to the caller.
// Err keeps the cause, so gateway kinds (timeout, unavailable) stay visible
// to errors.Is.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}
