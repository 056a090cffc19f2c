package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
)

// fakeGateway is an in-memory Processor. Customers created through it are
// visible to later FindCustomerByEmail calls.
type fakeGateway struct {
	sessions  map[string]stripe.CheckoutSession
	customers []stripe.Customer
	intents   map[string][]stripe.PaymentIntent
	event     stripe.Event
	eventErr  error
	err       error

	checkoutParams []*stripe.CheckoutSessionParams
	customerParams []*stripe.CustomerParams
	refundCalls    []refundCall
	cancelled      []string
}

type refundCall struct {
	paymentIntentID string
	amount          *int64
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (stripe.CheckoutSession, error) {
	if f.err != nil {
		return stripe.CheckoutSession{}, f.err
	}
	f.checkoutParams = append(f.checkoutParams, params)
	return stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeGateway) GetCheckoutSession(_ context.Context, id string) (stripe.CheckoutSession, error) {
	if f.err != nil {
		return stripe.CheckoutSession{}, f.err
	}
	sess, ok := f.sessions[id]
	if !ok {
		return stripe.CheckoutSession{}, errors.New("No such checkout.session: " + id)
	}
	return sess, nil
}

func (f *fakeGateway) FindCustomerByEmail(_ context.Context, email string) (stripe.Customer, bool, error) {
	if f.err != nil {
		return stripe.Customer{}, false, f.err
	}
	for _, c := range f.customers {
		if c.Email == email {
			return c, true, nil
		}
	}
	return stripe.Customer{}, false, nil
}

func (f *fakeGateway) SearchCustomerByMetadata(_ context.Context, key, value string) (stripe.Customer, bool, error) {
	if f.err != nil {
		return stripe.Customer{}, false, f.err
	}
	for _, c := range f.customers {
		if c.Metadata[key] == value {
			return c, true, nil
		}
	}
	return stripe.Customer{}, false, nil
}

func (f *fakeGateway) CreateCustomer(_ context.Context, params *stripe.CustomerParams) (stripe.Customer, error) {
	if f.err != nil {
		return stripe.Customer{}, f.err
	}
	f.customerParams = append(f.customerParams, params)
	c := stripe.Customer{
		ID:       "cus_" + string(rune('A'+len(f.customers))),
		Email:    stripe.StringValue(params.Email),
		Metadata: params.Metadata,
	}
	f.customers = append(f.customers, c)
	return c, nil
}

func (f *fakeGateway) CancelSubscriptionAtPeriodEnd(_ context.Context, id string) (stripe.Subscription, error) {
	if f.err != nil {
		return stripe.Subscription{}, f.err
	}
	f.cancelled = append(f.cancelled, id)
	return stripe.Subscription{ID: id, CancelAtPeriodEnd: true, Status: stripe.SubscriptionStatusActive}, nil
}

func (f *fakeGateway) CreateRefund(_ context.Context, paymentIntentID string, amount *int64) (stripe.Refund, error) {
	if f.err != nil {
		return stripe.Refund{}, f.err
	}
	f.refundCalls = append(f.refundCalls, refundCall{paymentIntentID: paymentIntentID, amount: amount})
	r := stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded, Amount: 499}
	if amount != nil {
		r.Amount = *amount
	}
	return r, nil
}

func (f *fakeGateway) ListPaymentIntents(_ context.Context, customerID string, limit int64) ([]stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.intents[customerID]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeGateway) ConstructEvent(_ []byte, _ string) (stripe.Event, error) {
	return f.event, f.eventErr
}

// newTestService returns a service writing JSON logs into the returned buffer.
func newTestService(g *fakeGateway) (Service, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(g, Options{FrontendURL: "https://shop.example.com/", Logger: logger}), &buf
}
