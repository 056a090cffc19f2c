package app

import (
	"context"
	"encoding/json"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
	gw "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/gateway"
)

// HandleWebhook verifies the signed payload and dispatches by event type.
// A verified event is always acknowledged; handlers only log.
func (s serviceImpl) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.gw.ConstructEvent(payload, signatureHeader)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", "error", err)
		return newError(ErrBadSignature, gw.Message(err), err)
	}

	logger := s.logger.With("event_id", event.ID, "event_type", string(event.Type))
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if !decodeEventObject(event, &sess, logger) {
			return nil
		}
		logger.Info("checkout completed",
			"session_id", sess.ID,
			"user_id", sess.ClientReferenceID,
			"product_type", sess.Metadata[MetaProductType],
			"amount", MinorToMajor(sess.AmountTotal),
		)

	case stripe.EventTypeCustomerSubscriptionCreated:
		var sub stripe.Subscription
		if !decodeEventObject(event, &sub, logger) {
			return nil
		}
		logger.Info("subscription created",
			"subscription_id", sub.ID,
			"customer_id", customerID(sub.Customer),
			"status", string(sub.Status),
		)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if !decodeEventObject(event, &sub, logger) {
			return nil
		}
		logger.Info("subscription deleted",
			"subscription_id", sub.ID,
			"customer_id", customerID(sub.Customer),
		)

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if !decodeEventObject(event, &pi, logger) {
			return nil
		}
		reason := ""
		if pi.LastPaymentError != nil {
			reason = pi.LastPaymentError.Msg
		}
		logger.Warn("payment failed",
			"payment_intent_id", pi.ID,
			"customer_id", customerID(pi.Customer),
			"reason", reason,
		)

	default:
		logger.Info("unhandled event type")
	}
	return nil
}

func decodeEventObject(event stripe.Event, v any, logger *slog.Logger) bool {
	if event.Data == nil {
		logger.Error("webhook event has no data")
		return false
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		logger.Error("decode webhook object", "error", err)
		return false
	}
	return true
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
