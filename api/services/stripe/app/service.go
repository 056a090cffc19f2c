package app

import (
	"context"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
	gw "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/gateway"
)

// Service defines the business operations for the Stripe domain.
// Every operation forwards to Stripe; nothing is stored locally.
type Service interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (SessionResponse, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (SessionResponse, error)
	CancelSubscription(ctx context.Context, req CancelSubscriptionRequest) (stripe.Subscription, error)
	VerifyPurchase(ctx context.Context, req VerifyPurchaseRequest) (VerifyPurchaseResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
	Refund(ctx context.Context, req RefundRequest) (stripe.Refund, error)
	PurchaseHistory(ctx context.Context, userID string) ([]Purchase, error)
}

// Options carries the configuration the service needs from the environment.
type Options struct {
	// FrontendURL is the base for checkout success and cancel redirects.
	FrontendURL string
	Currency    string
	Logger      *slog.Logger
}

type serviceImpl struct {
	gw     gw.Processor
	opts   Options
	logger *slog.Logger
}

func NewService(g gw.Processor, opts Options) Service {
	if opts.Currency == "" {
		opts.Currency = string(stripe.CurrencyUSD)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return serviceImpl{gw: g, opts: opts, logger: logger}
}

// gatewayError wraps a Processor failure, surfacing Stripe's own message.
func gatewayError(err error) error {
	return newError(ErrGateway, gw.Message(err), err)
}
