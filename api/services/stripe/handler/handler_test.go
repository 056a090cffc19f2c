package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"google.golang.org/grpc/codes"

	app "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/app"
	gw "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/gateway"
)

type fakeService struct {
	err         error
	webhookBody []byte
	webhookSig  string
	refundReq   app.RefundRequest
	historyUser string
}

func (f *fakeService) CreateCheckoutSession(_ context.Context, req app.CheckoutRequest) (app.SessionResponse, error) {
	if f.err != nil {
		return app.SessionResponse{}, f.err
	}
	return app.SessionResponse{SessionID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

func (f *fakeService) CreateSubscription(_ context.Context, req app.SubscriptionRequest) (app.SessionResponse, error) {
	if f.err != nil {
		return app.SessionResponse{}, f.err
	}
	return app.SessionResponse{SessionID: "cs_sub", URL: "https://checkout.stripe.com/c/pay/cs_sub"}, nil
}

func (f *fakeService) CancelSubscription(_ context.Context, req app.CancelSubscriptionRequest) (stripe.Subscription, error) {
	if f.err != nil {
		return stripe.Subscription{}, f.err
	}
	return stripe.Subscription{ID: req.SubscriptionID, CancelAtPeriodEnd: true}, nil
}

func (f *fakeService) VerifyPurchase(_ context.Context, req app.VerifyPurchaseRequest) (app.VerifyPurchaseResponse, error) {
	if f.err != nil {
		return app.VerifyPurchaseResponse{}, f.err
	}
	return app.VerifyPurchaseResponse{Success: false, Paid: false, Status: "unpaid"}, nil
}

func (f *fakeService) HandleWebhook(_ context.Context, payload []byte, sig string) error {
	f.webhookBody, f.webhookSig = payload, sig
	return f.err
}

func (f *fakeService) Refund(_ context.Context, req app.RefundRequest) (stripe.Refund, error) {
	f.refundReq = req
	if f.err != nil {
		return stripe.Refund{}, f.err
	}
	return stripe.Refund{ID: "re_1", Amount: 150}, nil
}

func (f *fakeService) PurchaseHistory(_ context.Context, userID string) ([]app.Purchase, error) {
	f.historyUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return []app.Purchase{}, nil
}

func newTestMux(t *testing.T, svc app.Service) http.Handler {
	t.Helper()
	mux := runtime.NewServeMux(
		runtime.WithRoutingErrorHandler(RoutingErrorHandler),
		runtime.WithMarshalerOption(runtime.MIMEWildcard, Marshaler),
	)
	require.NoError(t, New(svc, nil).Register(mux))
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateCheckoutSession_OK(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/create-checkout-session", `{"productType":"remove_ads","userId":"u1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "cs_1", body["sessionId"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", body["url"])
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unknown product", &app.Error{Kind: app.ErrUnknownProduct, Message: "Invalid product type"}, http.StatusBadRequest, "Invalid product type"},
		{"validation", &app.Error{Kind: app.ErrInvalidRequest, Message: "userId is required"}, http.StatusBadRequest, "userId is required"},
		{"processor", &app.Error{Kind: app.ErrGateway, Message: "No such price", Err: &gw.Error{Kind: gw.ErrProcessor, Message: "No such price"}}, http.StatusInternalServerError, "No such price"},
		{"timeout", &app.Error{Kind: app.ErrGateway, Message: "timed out", Err: &gw.Error{Kind: gw.ErrTimeout}}, http.StatusGatewayTimeout, "timed out"},
		{"breaker open", &app.Error{Kind: app.ErrGateway, Message: "unavailable", Err: &gw.Error{Kind: gw.ErrUnavailable}}, http.StatusServiceUnavailable, "unavailable"},
		{"customer", &app.Error{Kind: app.ErrCustomer, Message: "Failed to create customer"}, http.StatusInternalServerError, "Failed to create customer"},
		{"untyped", errors.New("secret detail"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestMux(t, &fakeService{err: tc.err})

			rec := do(t, h, http.MethodPost, "/create-checkout-session", `{"productType":"x","userId":"u1"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decodeBody(t, rec)["error"])
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, codes.OK, Code(nil))
	assert.Equal(t, codes.DeadlineExceeded, Code(context.DeadlineExceeded))
	assert.Equal(t, codes.InvalidArgument, Code(&app.Error{Kind: app.ErrBadSignature}))
	assert.Equal(t, codes.Internal, Code(errors.New("x")))
}

func TestMalformedJSON(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/create-subscription", `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decodeBody(t, rec)["error"])
}

func TestOversizedJSONBody(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	body := `{"userId":"` + strings.Repeat("a", maxJSONBody) + `"}`
	rec := do(t, h, http.MethodPost, "/create-subscription", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body too large", decodeBody(t, rec)["error"])
}

func TestCancelSubscription_Shape(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/cancel-subscription", `{"subscriptionId":"sub_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	sub, ok := body["subscription"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sub_1", sub["id"])
	assert.Equal(t, true, sub["cancel_at_period_end"])
}

func TestVerifyPurchase_Unpaid(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/verify-purchase", `{"sessionId":"cs_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "paid": false, "status": "unpaid"}, decodeBody(t, rec))
}

func TestWebhook(t *testing.T) {
	svc := &fakeService{}
	h := newTestMux(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, `{"id":"evt_1"}`, string(svc.webhookBody))
	assert.Equal(t, "t=1,v1=abc", svc.webhookSig)
}

func TestWebhook_BadSignature(t *testing.T) {
	h := newTestMux(t, &fakeService{err: &app.Error{Kind: app.ErrBadSignature, Message: "webhook has invalid signature"}})

	rec := do(t, h, http.MethodPost, "/webhook", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Webhook Error: webhook has invalid signature", rec.Body.String())
}

func TestWebhook_LargeEventAccepted(t *testing.T) {
	svc := &fakeService{}
	h := newTestMux(t, svc)

	payload := `{"id":"evt_1","pad":"` + strings.Repeat("a", 512<<10) + `"}`
	rec := do(t, h, http.MethodPost, "/webhook", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.webhookBody, len(payload))
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	svc := &fakeService{}
	h := newTestMux(t, svc)

	rec := do(t, h, http.MethodPost, "/webhook", strings.Repeat("a", maxWebhookBody+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "Webhook Error: request body too large", string(body))
	assert.Nil(t, svc.webhookBody)
}

func TestRefund(t *testing.T) {
	svc := &fakeService{}
	h := newTestMux(t, svc)

	rec := do(t, h, http.MethodPost, "/admin/refund", `{"paymentIntentId":"pi_1","amount":150}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi_1", svc.refundReq.PaymentIntentID)
	require.NotNil(t, svc.refundReq.Amount)
	assert.Equal(t, int64(150), *svc.refundReq.Amount)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestPurchaseHistory(t *testing.T) {
	svc := &fakeService{}
	h := newTestMux(t, svc)

	rec := do(t, h, http.MethodGet, "/admin/purchases/user-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", svc.historyUser)
	assert.JSONEq(t, `{"purchases":[]}`, rec.Body.String())
}

func TestListProducts(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	rec := do(t, h, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	products, ok := decodeBody(t, rec)["products"].([]any)
	require.True(t, ok)
	assert.Len(t, products, 4)
}

func TestUnmatchedRoute(t *testing.T) {
	h := newTestMux(t, &fakeService{})

	rec := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeBody(t, rec)["error"])

	rec = do(t, h, http.MethodGet, "/webhook", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
