package stripegw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	gw "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/gateway"
)

const defaultTimeout = 10 * time.Second

// Config configures the Stripe-backed gateway.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// Timeout bounds every outbound call.
	Timeout time.Duration
	// BaseURL overrides the Stripe API host; used by tests.
	BaseURL string
	Logger  *slog.Logger
}

// client is the Stripe SDK-backed implementation of the gateway.
type client struct {
	api           *stripeclient.API
	webhookSecret string
	timeout       time.Duration
	breaker       *gobreaker.CircuitBreaker[any]
	logger        *slog.Logger
}

// New returns a Processor backed by the official Stripe SDK.
// SDK network retries are disabled; failures surface to the caller immediately.
func New(cfg Config) gw.Processor { return newClient(cfg) }

func newClient(cfg Config) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     leveledLogger{logger: logger},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(strings.TrimSuffix(cfg.BaseURL, "/"))
	}

	api := &stripeclient.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	})

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		timeout:       timeout,
		breaker:       breaker,
		logger:        logger,
	}
}

// countsAsSuccess keeps Stripe's 4xx answers (bad ids, declined refunds, ...)
// from tripping the breaker. Rate limiting still counts as a failure.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

// call runs fn through the breaker with the per-call deadline applied.
// Caller cancellation is not propagated: once issued, a Stripe call runs to
// completion or to its own deadline.
func call[T any](ctx context.Context, c *client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	res, err := c.breaker.Execute(func() (any, error) {
		v, err := fn(ctx)
		return v, err
	})
	if err != nil {
		var zero T
		return zero, c.classify(op, err)
	}
	return res.(T), nil
}

func (c *client) classify(op string, err error) error {
	var out *gw.Error
	var se *stripe.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		out = &gw.Error{Kind: gw.ErrUnavailable, Message: "payment processor is temporarily unavailable", Err: err}
	case errors.Is(err, context.Canceled):
		out = &gw.Error{Kind: gw.ErrProcessor, Message: "payment processor request was cancelled", Err: err}
	case isTimeout(err):
		out = &gw.Error{Kind: gw.ErrTimeout, Message: "payment processor did not respond in time", Err: err}
	case errors.As(err, &se) && se.Msg != "":
		out = &gw.Error{Kind: gw.ErrProcessor, Message: se.Msg, Err: err}
	default:
		out = &gw.Error{Kind: gw.ErrProcessor, Message: err.Error(), Err: err}
	}
	c.logger.Warn("stripe call failed", "op", op, "kind", out.Kind.Error(), "err", err)
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (stripe.CheckoutSession, error) {
	return call(ctx, c, "checkout.session.create", func(ctx context.Context) (stripe.CheckoutSession, error) {
		p := *params
		p.Context = ctx
		sess, err := c.api.CheckoutSessions.New(&p)
		if err != nil {
			return stripe.CheckoutSession{}, err
		}
		return *sess, nil
	})
}

func (c *client) GetCheckoutSession(ctx context.Context, id string) (stripe.CheckoutSession, error) {
	return call(ctx, c, "checkout.session.get", func(ctx context.Context) (stripe.CheckoutSession, error) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		sess, err := c.api.CheckoutSessions.Get(id, params)
		if err != nil {
			return stripe.CheckoutSession{}, err
		}
		return *sess, nil
	})
}

type customerLookup struct {
	cust  stripe.Customer
	found bool
}

func (c *client) FindCustomerByEmail(ctx context.Context, email string) (stripe.Customer, bool, error) {
	res, err := call(ctx, c, "customer.list", func(ctx context.Context) (customerLookup, error) {
		params := &stripe.CustomerListParams{Email: stripe.String(email)}
		params.Limit = stripe.Int64(1)
		params.Context = ctx
		iter := c.api.Customers.List(params)
		if iter.Next() {
			return customerLookup{cust: *iter.Customer(), found: true}, nil
		}
		return customerLookup{}, iter.Err()
	})
	return res.cust, res.found, err
}

func (c *client) SearchCustomerByMetadata(ctx context.Context, key, value string) (stripe.Customer, bool, error) {
	res, err := call(ctx, c, "customer.search", func(ctx context.Context) (customerLookup, error) {
		params := &stripe.CustomerSearchParams{}
		params.Query = metadataQuery(key, value)
		params.Limit = stripe.Int64(1)
		params.Context = ctx
		iter := c.api.Customers.Search(params)
		if iter.Next() {
			return customerLookup{cust: *iter.Customer(), found: true}, nil
		}
		return customerLookup{}, iter.Err()
	})
	return res.cust, res.found, err
}

// metadataQuery builds a Stripe search clause matching metadata[key] exactly.
func metadataQuery(key, value string) string {
	esc := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return fmt.Sprintf("metadata['%s']:'%s'", esc.Replace(key), esc.Replace(value))
}

func (c *client) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (stripe.Customer, error) {
	return call(ctx, c, "customer.create", func(ctx context.Context) (stripe.Customer, error) {
		p := *params
		p.Context = ctx
		cust, err := c.api.Customers.New(&p)
		if err != nil {
			return stripe.Customer{}, err
		}
		return *cust, nil
	})
}

func (c *client) CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) (stripe.Subscription, error) {
	return call(ctx, c, "subscription.update", func(ctx context.Context) (stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		sub, err := c.api.Subscriptions.Update(id, params)
		if err != nil {
			return stripe.Subscription{}, err
		}
		return *sub, nil
	})
}

func (c *client) CreateRefund(ctx context.Context, paymentIntentID string, amount *int64) (stripe.Refund, error) {
	return call(ctx, c, "refund.create", func(ctx context.Context) (stripe.Refund, error) {
		params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
		if amount != nil {
			params.Amount = stripe.Int64(*amount)
		}
		params.Context = ctx
		ref, err := c.api.Refunds.New(params)
		if err != nil {
			return stripe.Refund{}, err
		}
		return *ref, nil
	})
}

func (c *client) ListPaymentIntents(ctx context.Context, customerID string, limit int64) ([]stripe.PaymentIntent, error) {
	return call(ctx, c, "payment_intent.list", func(ctx context.Context) ([]stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentListParams{Customer: stripe.String(customerID)}
		params.Limit = stripe.Int64(limit)
		params.Context = ctx
		iter := c.api.PaymentIntents.List(params)
		out := make([]stripe.PaymentIntent, 0, limit)
		// Stop at limit so the iterator never requests a second page.
		for int64(len(out)) < limit && iter.Next() {
			out = append(out, *iter.PaymentIntent())
		}
		return out, iter.Err()
	})
}

// ConstructEvent checks the HMAC signature and timestamp tolerance before
// parsing. Events sent with an older endpoint API version are still accepted.
func (c *client) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
