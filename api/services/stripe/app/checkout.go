package app

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// successPath keeps Stripe's session placeholder so the front end can call
// VerifyPurchase with the real session id after the redirect.
const (
	successPath = "/success?session_id={CHECKOUT_SESSION_ID}"
	cancelPath  = "/cancel"
)

// CreateCheckoutSession starts a one-time payment for a catalog product.
// Unknown products are rejected before Stripe is contacted.
func (s serviceImpl) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (SessionResponse, error) {
	if err := validateRequest(req); err != nil {
		return SessionResponse{}, err
	}
	product, err := LookupProduct(req.ProductType)
	if err != nil {
		return SessionResponse{}, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.opts.Currency),
				UnitAmount: stripe.Int64(product.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(product.Name),
					Description: stripe.String(product.Description),
				},
			},
			Quantity: stripe.Int64(product.Quantity),
		}},
		SuccessURL:        stripe.String(joinURL(s.opts.FrontendURL, successPath)),
		CancelURL:         stripe.String(joinURL(s.opts.FrontendURL, cancelPath)),
		ClientReferenceID: stripe.String(req.UserID),
	}
	for k, v := range product.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata(MetaUserID, req.UserID)

	sess, err := s.gw.CreateCheckoutSession(ctx, params)
	if err != nil {
		return SessionResponse{}, gatewayError(err)
	}
	s.logger.Info("checkout session created", "session_id", sess.ID, "product_type", product.ID, "user_id", req.UserID)
	return SessionResponse{SessionID: sess.ID, URL: sess.URL}, nil
}
