package app

import (
	"context"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
)

// purchaseHistoryLimit caps the payment intents returned per user.
const purchaseHistoryLimit = 100

// Refund issues a full refund when req.Amount is nil, otherwise a partial
// refund of exactly req.Amount minor units.
func (s serviceImpl) Refund(ctx context.Context, req RefundRequest) (stripe.Refund, error) {
	if err := validateRequest(req); err != nil {
		return stripe.Refund{}, err
	}
	ref, err := s.gw.CreateRefund(ctx, req.PaymentIntentID, req.Amount)
	if err != nil {
		return stripe.Refund{}, gatewayError(err)
	}
	s.logger.Info("refund issued", "refund_id", ref.ID, "payment_intent_id", req.PaymentIntentID, "partial", req.Amount != nil)
	return ref, nil
}

// PurchaseHistory lists the payment intents of the customer tagged with
// userID. A user without a Stripe customer has an empty history.
func (s serviceImpl) PurchaseHistory(ctx context.Context, userID string) ([]Purchase, error) {
	if userID == "" {
		return nil, newError(ErrInvalidRequest, "userId is required", nil)
	}
	cust, found, err := s.gw.SearchCustomerByMetadata(ctx, MetaUserID, userID)
	if err != nil {
		return nil, gatewayError(err)
	}
	if !found {
		return []Purchase{}, nil
	}

	intents, err := s.gw.ListPaymentIntents(ctx, cust.ID, purchaseHistoryLimit)
	if err != nil {
		return nil, gatewayError(err)
	}
	out := make([]Purchase, 0, len(intents))
	for _, pi := range intents {
		out = append(out, Purchase{
			ID:      pi.ID,
			Amount:  MinorToMajor(pi.Amount),
			Status:  string(pi.Status),
			Created: time.Unix(pi.Created, 0).UTC(),
		})
	}
	return out, nil
}
