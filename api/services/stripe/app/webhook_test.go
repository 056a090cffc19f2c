package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
)

func eventOf(t stripe.EventType, raw string) stripe.Event {
	return stripe.Event{ID: "evt_1", Type: t, Data: &stripe.EventData{Raw: json.RawMessage(raw)}}
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	g := &fakeGateway{eventErr: errors.New("webhook has invalid signature")}
	svc, logs := newTestService(g)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=deadbeef")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadSignature))
	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "webhook has invalid signature", appErr.Message)
	assert.NotContains(t, logs.String(), "checkout completed")
}

func TestHandleWebhook_Dispatch(t *testing.T) {
	cases := []struct {
		name  string
		event stripe.Event
		want  []string
	}{
		{
			name:  "checkout completed",
			event: eventOf(stripe.EventTypeCheckoutSessionCompleted, `{"id":"cs_1","client_reference_id":"user-1","amount_total":299,"metadata":{"productType":"remove_ads"}}`),
			want:  []string{`"msg":"checkout completed"`, `"session_id":"cs_1"`, `"user_id":"user-1"`, `"product_type":"remove_ads"`, `"amount":2.99`},
		},
		{
			name:  "subscription created",
			event: eventOf(stripe.EventTypeCustomerSubscriptionCreated, `{"id":"sub_1","customer":"cus_1","status":"active"}`),
			want:  []string{`"msg":"subscription created"`, `"subscription_id":"sub_1"`, `"customer_id":"cus_1"`, `"status":"active"`},
		},
		{
			name:  "subscription deleted",
			event: eventOf(stripe.EventTypeCustomerSubscriptionDeleted, `{"id":"sub_1","customer":"cus_1","status":"canceled"}`),
			want:  []string{`"msg":"subscription deleted"`, `"subscription_id":"sub_1"`},
		},
		{
			name:  "payment failed",
			event: eventOf(stripe.EventTypePaymentIntentPaymentFailed, `{"id":"pi_1","customer":"cus_1","last_payment_error":{"message":"Your card was declined."}}`),
			want:  []string{`"msg":"payment failed"`, `"payment_intent_id":"pi_1"`, `"reason":"Your card was declined."`},
		},
		{
			name:  "unknown type",
			event: eventOf("invoice.paid", `{"id":"in_1"}`),
			want:  []string{`"msg":"unhandled event type"`, `"event_type":"invoice.paid"`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, logs := newTestService(&fakeGateway{event: tc.event})

			require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
			for _, w := range tc.want {
				assert.Contains(t, logs.String(), w)
			}
		})
	}
}

func TestHandleWebhook_UndecodableObjectStillAcknowledged(t *testing.T) {
	svc, logs := newTestService(&fakeGateway{event: eventOf(stripe.EventTypeCheckoutSessionCompleted, `[1,2]`)})

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Contains(t, logs.String(), "decode webhook object")
}
