package app

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// CreateSubscription resolves the Stripe customer for req.Email and starts a
// monthly subscription checkout for ProMonthly.
//
// Customer resolution is read-then-write with no lock: two concurrent calls
// for a new email can both create a customer. Sequential calls reuse the first.
func (s serviceImpl) CreateSubscription(ctx context.Context, req SubscriptionRequest) (SessionResponse, error) {
	if err := validateRequest(req); err != nil {
		return SessionResponse{}, err
	}

	customerID, err := s.resolveCustomer(ctx, req.UserID, req.Email)
	if err != nil {
		return SessionResponse{}, newError(ErrCustomer, "Failed to create customer", err)
	}

	meta := map[string]string{MetaUserID: req.UserID, MetaType: typeSubscription}
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.opts.Currency),
				UnitAmount: stripe.Int64(ProMonthly.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(ProMonthly.Name),
				},
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(ProMonthly.Interval),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
		SuccessURL:        stripe.String(joinURL(s.opts.FrontendURL, successPath)),
		CancelURL:         stripe.String(joinURL(s.opts.FrontendURL, cancelPath)),
		ClientReferenceID: stripe.String(req.UserID),
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	sess, err := s.gw.CreateCheckoutSession(ctx, params)
	if err != nil {
		return SessionResponse{}, gatewayError(err)
	}
	s.logger.Info("subscription session created", "session_id", sess.ID, "customer_id", customerID, "user_id", req.UserID)
	return SessionResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s serviceImpl) resolveCustomer(ctx context.Context, userID, email string) (string, error) {
	existing, found, err := s.gw.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if found {
		s.logger.Info("reusing existing customer", "customer_id", existing.ID, "user_id", userID)
		return existing.ID, nil
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.AddMetadata(MetaUserID, userID)
	created, err := s.gw.CreateCustomer(ctx, params)
	if err != nil {
		return "", err
	}
	s.logger.Info("customer created", "customer_id", created.ID, "user_id", userID)
	return created.ID, nil
}

// CancelSubscription schedules cancellation at the end of the current billing
// period and returns the subscription as Stripe reports it.
func (s serviceImpl) CancelSubscription(ctx context.Context, req CancelSubscriptionRequest) (stripe.Subscription, error) {
	if err := validateRequest(req); err != nil {
		return stripe.Subscription{}, err
	}
	sub, err := s.gw.CancelSubscriptionAtPeriodEnd(ctx, req.SubscriptionID)
	if err != nil {
		return stripe.Subscription{}, gatewayError(err)
	}
	s.logger.Info("subscription set to cancel at period end", "subscription_id", sub.ID)
	return sub, nil
}
