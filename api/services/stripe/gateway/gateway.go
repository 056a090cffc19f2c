package gateway

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v82"
)

//go:generate mockgen -source=gateway.go -destination=mock/mock_gateway.go -package=mock_gateway

// Processor abstracts the Stripe operations needed by the app layer.
// Methods return values (not pointers) to respect the project's preference
// to avoid pointer types in public interfaces.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (stripe.CheckoutSession, error)
	// FindCustomerByEmail reports found=false when no customer has exactly this email.
	FindCustomerByEmail(ctx context.Context, email string) (cust stripe.Customer, found bool, err error)
	// SearchCustomerByMetadata returns the first customer whose metadata[key] equals value.
	SearchCustomerByMetadata(ctx context.Context, key, value string) (cust stripe.Customer, found bool, err error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (stripe.Customer, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) (stripe.Subscription, error)
	// CreateRefund refunds the full charge when amount is nil.
	CreateRefund(ctx context.Context, paymentIntentID string, amount *int64) (stripe.Refund, error)
	ListPaymentIntents(ctx context.Context, customerID string, limit int64) ([]stripe.PaymentIntent, error)
	// ConstructEvent verifies the signature header against the raw payload and parses the event.
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// Error kinds reported by Processor implementations.
var (
	// ErrProcessor indicates Stripe rejected or failed the request.
	ErrProcessor = errors.New("processor error")
	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("processor timeout")
	// ErrUnavailable indicates calls are being short-circuited by the breaker.
	ErrUnavailable = errors.New("processor unavailable")
)

// Error carries the kind of a gateway failure and the message to surface to callers.
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

// Message returns the processor-facing message of err. Errors that did not
// come through a Processor fall back to err.Error().
func Message(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}
