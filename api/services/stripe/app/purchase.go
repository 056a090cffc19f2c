package app

import (
	"context"

	stripe "github.com/stripe/stripe-go/v82"
)

// VerifyPurchase asks Stripe whether a checkout session was paid. The success
// redirect alone proves nothing: its URL is visible to the client.
func (s serviceImpl) VerifyPurchase(ctx context.Context, req VerifyPurchaseRequest) (VerifyPurchaseResponse, error) {
	if err := validateRequest(req); err != nil {
		return VerifyPurchaseResponse{}, err
	}
	sess, err := s.gw.GetCheckoutSession(ctx, req.SessionID)
	if err != nil {
		return VerifyPurchaseResponse{}, gatewayError(err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return VerifyPurchaseResponse{Success: false, Paid: false, Status: string(sess.PaymentStatus)}, nil
	}
	return VerifyPurchaseResponse{
		Success:        true,
		Paid:           true,
		UserID:         sess.ClientReferenceID,
		ProductType:    sess.Metadata[MetaProductType],
		ProductDetails: sess.Metadata,
		Amount:         MinorToMajor(sess.AmountTotal),
	}, nil
}
